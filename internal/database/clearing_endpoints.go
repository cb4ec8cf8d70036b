package database

import (
	"context"
	"fmt"
	"sort"

	"github.com/ocx/paygate/internal/core"
)

// ClearingEndpointStore resolves orchestrator.ClearingEndpointResolver
// against the clearing_endpoints table, ranking candidates the same way
// policy.Resolver ranks AuthRecords: highest priority wins, ties broken
// lexicographically, and an empty clearingSystemCode/paymentType on the
// row acts as a wildcard.
type ClearingEndpointStore struct {
	sc *SupabaseClient
}

// NewClearingEndpointStore wraps an existing Supabase client.
func NewClearingEndpointStore(sc *SupabaseClient) *ClearingEndpointStore {
	return &ClearingEndpointStore{sc: sc}
}

// Resolve returns the (endpoint, serviceName) pair for coordinate's
// clearing leg. An error here is a configuration-missing failure on the
// outbound path, same as policy.ErrNotFound.
func (s *ClearingEndpointStore) Resolve(ctx context.Context, coordinate core.PolicyCoordinate) (string, string, error) {
	rows, err := s.sc.ListClearingEndpoints(ctx, coordinate.TenantID)
	if err != nil {
		return "", "", fmt.Errorf("clearing endpoint store: list: %w", err)
	}

	var candidates []ClearingEndpointRow
	for _, row := range rows {
		if row.ClearingSystemCode != "" && row.ClearingSystemCode != coordinate.ClearingSystemCode {
			continue
		}
		if row.PaymentType != "" && row.PaymentType != coordinate.PaymentType {
			continue
		}
		candidates = append(candidates, row)
	}
	if len(candidates) == 0 {
		return "", "", fmt.Errorf("clearing endpoint store: no endpoint configured for tenant %s clearingSystem %s", coordinate.TenantID, coordinate.ClearingSystemCode)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ServiceName < candidates[j].ServiceName
	})

	best := candidates[0]
	return best.Endpoint, best.ServiceName, nil
}
