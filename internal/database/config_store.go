package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/mapping"
	"github.com/ocx/paygate/internal/policy"
)

// ConfigStore adapts SupabaseClient to policy.Store and policy.
// MutationPublisher, so the Configuration Resolver can read auth records
// and mapping documents out of the same Supabase project the rest of the
// gateway persists to. Mutation notification is local-process only:
// Invalidate notifies this process's listeners, and nothing is sent to
// other processes.
type ConfigStore struct {
	sc *SupabaseClient

	mu        sync.Mutex
	listeners []func()
}

// NewConfigStore wraps an existing Supabase client.
func NewConfigStore(sc *SupabaseClient) *ConfigStore {
	return &ConfigStore{sc: sc}
}

func (c *ConfigStore) ListAuthRecords(ctx context.Context, level policy.Level) ([]policy.AuthRecord, error) {
	rows, err := c.sc.ListAuthRecords(ctx, string(level))
	if err != nil {
		return nil, fmt.Errorf("config store: list auth records: %w", err)
	}
	out := make([]policy.AuthRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := authRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *ConfigStore) ListMappingDocuments(ctx context.Context) ([]*mapping.Document, error) {
	rows, err := c.sc.ListMappingDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("config store: list mapping documents: %w", err)
	}
	out := make([]*mapping.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := mappingDocumentFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// PutAuthRecord persists a record and notifies listeners.
func (c *ConfigStore) PutAuthRecord(ctx context.Context, rec policy.AuthRecord) error {
	row, err := authRecordToRow(rec)
	if err != nil {
		return err
	}
	if err := c.sc.PutAuthRecord(ctx, &row); err != nil {
		return fmt.Errorf("config store: put auth record: %w", err)
	}
	c.notify()
	return nil
}

// PutMappingDocument validates, persists, and notifies listeners.
func (c *ConfigStore) PutMappingDocument(ctx context.Context, doc *mapping.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("config store: invalid document %q: %w", doc.Name, err)
	}
	row, err := mappingDocumentToRow(doc)
	if err != nil {
		return err
	}
	if err := c.sc.PutMappingDocument(ctx, &row); err != nil {
		return fmt.Errorf("config store: put mapping document: %w", err)
	}
	c.notify()
	return nil
}

func (c *ConfigStore) OnMutation(fn func()) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Invalidate is called by the control-plane CRUD surface (out of this
// package's scope) whenever a record changes out-of-band, e.g. via direct
// SQL or another process.
func (c *ConfigStore) Invalidate() {
	c.notify()
}

func (c *ConfigStore) notify() {
	c.mu.Lock()
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func coordinateFromRow(tenantID, paymentType, localInstrument, clearingSystem, direction string) core.PolicyCoordinate {
	return core.PolicyCoordinate{
		TenantID:            tenantID,
		PaymentType:         paymentType,
		LocalInstrumentCode: localInstrument,
		ClearingSystemCode:  clearingSystem,
		Direction:           core.Direction(direction),
	}
}

func authRecordFromRow(row AuthConfigRow) (policy.AuthRecord, error) {
	cfg, err := policy.UnmarshalAuthConfig(row.Config)
	if err != nil {
		return policy.AuthRecord{}, err
	}
	return policy.AuthRecord{
		Name:       row.Name,
		Level:      policy.Level(row.Level),
		Coordinate: coordinateFromRow(row.TenantID, row.PaymentType, row.LocalInstrumentCode, row.ClearingSystemCode, row.Direction),
		Config:     cfg,
		Priority:   row.Priority,
		Active:     row.Active,
	}, nil
}

func authRecordToRow(rec policy.AuthRecord) (AuthConfigRow, error) {
	configJSON, err := policy.MarshalAuthConfig(rec.Config)
	if err != nil {
		return AuthConfigRow{}, err
	}
	return AuthConfigRow{
		Name:                rec.Name,
		Level:               string(rec.Level),
		TenantID:            rec.Coordinate.TenantID,
		PaymentType:         rec.Coordinate.PaymentType,
		LocalInstrumentCode: rec.Coordinate.LocalInstrumentCode,
		ClearingSystemCode:  rec.Coordinate.ClearingSystemCode,
		Direction:           string(rec.Coordinate.Direction),
		Config:              configJSON,
		Priority:            rec.Priority,
		Active:              rec.Active,
	}, nil
}

func mappingDocumentFromRow(row MappingDocumentRow) (*mapping.Document, error) {
	clauses, err := mapping.UnmarshalClauses(row.Clauses)
	if err != nil {
		return nil, err
	}
	return &mapping.Document{
		Name:       row.Name,
		Coordinate: coordinateFromRow(row.TenantID, row.PaymentType, row.LocalInstrumentCode, row.ClearingSystemCode, row.Direction),
		Direction:  core.Direction(row.Direction),
		Priority:   row.Priority,
		Active:     row.Active,
		Version:    row.Version,
		Clauses:    clauses,
	}, nil
}

func mappingDocumentToRow(doc *mapping.Document) (MappingDocumentRow, error) {
	clausesJSON, err := mapping.MarshalClauses(doc.Clauses)
	if err != nil {
		return MappingDocumentRow{}, err
	}
	return MappingDocumentRow{
		Name:                doc.Name,
		TenantID:            doc.Coordinate.TenantID,
		PaymentType:         doc.Coordinate.PaymentType,
		LocalInstrumentCode: doc.Coordinate.LocalInstrumentCode,
		ClearingSystemCode:  doc.Coordinate.ClearingSystemCode,
		Direction:           string(doc.Direction),
		Priority:            doc.Priority,
		Active:              doc.Active,
		Version:             doc.Version,
		Clauses:             clausesJSON,
	}, nil
}
