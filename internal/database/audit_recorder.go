package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ocx/paygate/internal/core"
)

// AuditRecorder adapts SupabaseClient to orchestrator.AuditRecorder,
// persisting one flow_audit_log row per core.TransitionRecord.
type AuditRecorder struct {
	sc *SupabaseClient
}

// NewAuditRecorder wraps an existing Supabase client.
func NewAuditRecorder(sc *SupabaseClient) *AuditRecorder {
	return &AuditRecorder{sc: sc}
}

func (a *AuditRecorder) Record(ctx context.Context, tenantID string, record core.TransitionRecord) error {
	row := &FlowAuditLogRow{
		CorrelationID: record.CorrelationID,
		TenantID:      tenantID,
		Stage:         string(record.Stage),
		Status:        record.Status,
		CreatedAt:     record.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if len(record.Metadata) > 0 {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("audit recorder: marshal metadata: %w", err)
		}
		row.Metadata = metadata
	}
	if err := a.sc.InsertFlowAuditLog(ctx, row); err != nil {
		return fmt.Errorf("audit recorder: insert: %w", err)
	}
	return nil
}
