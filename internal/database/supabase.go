package database

import (
	"context"
	"fmt"
	"os"

	supabase "github.com/supabase-community/supabase-go"
)

// ============================================================================
// SUPABASE CLIENT - CRUD operations for the configuration and audit surface
// ============================================================================

// SupabaseClient wraps the Supabase Go client with every paygate operation:
// configuration records (policy.Store's backing store), resilience
// policies (the dispatcher registry's seed), fraud assessments, webhook
// deliveries, and the flow audit trail.
type SupabaseClient struct {
	client *supabase.Client
}

// NewSupabaseClient creates a new Supabase client from SUPABASE_URL and
// SUPABASE_SERVICE_KEY.
func NewSupabaseClient() (*SupabaseClient, error) {
	url := os.Getenv("SUPABASE_URL")
	key := os.Getenv("SUPABASE_SERVICE_KEY")

	if url == "" || key == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY must be set")
	}

	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &SupabaseClient{client: client}, nil
}

// ============================================================================
// AUTH CONFIG OPERATIONS
// ============================================================================

// ListAuthRecords retrieves every auth config row at a given precedence
// level, for policy.Resolver to filter and rank.
func (sc *SupabaseClient) ListAuthRecords(ctx context.Context, level string) ([]AuthConfigRow, error) {
	var rows []AuthConfigRow
	_, err := sc.client.From("auth_configs").
		Select("*", "", false).
		Eq("level", level).
		Eq("active", "true").
		ExecuteTo(&rows)
	return rows, err
}

// PutAuthRecord creates or updates an auth config row.
func (sc *SupabaseClient) PutAuthRecord(ctx context.Context, row *AuthConfigRow) error {
	var result []AuthConfigRow
	_, err := sc.client.From("auth_configs").
		Upsert(row, "record_id", "", "").
		ExecuteTo(&result)
	return err
}

// ============================================================================
// MAPPING DOCUMENT OPERATIONS
// ============================================================================

// ListMappingDocuments retrieves every mapping document row, for
// policy.Resolver's EffectiveMapping to filter by coordinate and rank.
func (sc *SupabaseClient) ListMappingDocuments(ctx context.Context) ([]MappingDocumentRow, error) {
	var rows []MappingDocumentRow
	_, err := sc.client.From("mapping_documents").
		Select("*", "", false).
		Eq("active", "true").
		ExecuteTo(&rows)
	return rows, err
}

// PutMappingDocument creates or updates a mapping document row.
func (sc *SupabaseClient) PutMappingDocument(ctx context.Context, row *MappingDocumentRow) error {
	var result []MappingDocumentRow
	_, err := sc.client.From("mapping_documents").
		Upsert(row, "document_id", "", "").
		ExecuteTo(&result)
	return err
}

// ============================================================================
// RESILIENCE POLICY OPERATIONS
// ============================================================================

// GetResiliencePolicy retrieves a dispatcher resilience policy row for a
// (serviceName, tenantId) pair. Returns nil (not error) when no row
// exists, so callers fall back to service-name defaults.
func (sc *SupabaseClient) GetResiliencePolicy(ctx context.Context, serviceName, tenantID string) (*ResiliencePolicyRow, error) {
	var rows []ResiliencePolicyRow
	_, err := sc.client.From("resilience_policies").
		Select("*", "", false).
		Eq("service_name", serviceName).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get resilience policy: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// PutResiliencePolicy creates or updates a resilience policy row.
func (sc *SupabaseClient) PutResiliencePolicy(ctx context.Context, row *ResiliencePolicyRow) error {
	var result []ResiliencePolicyRow
	_, err := sc.client.From("resilience_policies").
		Upsert(row, "policy_id", "", "").
		ExecuteTo(&result)
	return err
}

// ============================================================================
// FRAUD ASSESSMENT OPERATIONS
// ============================================================================

// InsertFraudAssessment appends an immutable fraud assessment record.
func (sc *SupabaseClient) InsertFraudAssessment(ctx context.Context, row *FraudAssessmentRow) error {
	var result []FraudAssessmentRow
	_, err := sc.client.From("fraud_assessments").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// GetFraudAssessment retrieves a fraud assessment by ID.
func (sc *SupabaseClient) GetFraudAssessment(ctx context.Context, tenantID, assessmentID string) (*FraudAssessmentRow, error) {
	var rows []FraudAssessmentRow
	_, err := sc.client.From("fraud_assessments").
		Select("*", "", false).
		Eq("assessment_id", assessmentID).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ============================================================================
// WEBHOOK DELIVERY OPERATIONS
// ============================================================================

// PutWebhookDelivery creates or updates a webhook delivery row, keyed by
// correlationId.
func (sc *SupabaseClient) PutWebhookDelivery(ctx context.Context, row *WebhookDeliveryRow) error {
	var result []WebhookDeliveryRow
	_, err := sc.client.From("webhook_deliveries").
		Upsert(row, "correlation_id", "", "").
		ExecuteTo(&result)
	return err
}

// GetWebhookDelivery retrieves a delivery row by correlationId.
func (sc *SupabaseClient) GetWebhookDelivery(ctx context.Context, tenantID, correlationID string) (*WebhookDeliveryRow, error) {
	var rows []WebhookDeliveryRow
	_, err := sc.client.From("webhook_deliveries").
		Select("*", "", false).
		Eq("correlation_id", correlationID).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListWebhookDeliveries retrieves the most recent deliveries for a tenant,
// optionally filtered by messageType, for the delivery-history query
// surface.
func (sc *SupabaseClient) ListWebhookDeliveries(ctx context.Context, tenantID, messageType string, limit int) ([]WebhookDeliveryRow, error) {
	query := sc.client.From("webhook_deliveries").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Order("created_at", nil)
	if messageType != "" {
		query = query.Eq("message_type", messageType)
	}
	if limit <= 0 {
		limit = 50
	}
	query = query.Limit(limit, "")

	var rows []WebhookDeliveryRow
	_, err := query.ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// FLOW AUDIT LOG OPERATIONS
// ============================================================================

// InsertFlowAuditLog records one FlowContext transition.
func (sc *SupabaseClient) InsertFlowAuditLog(ctx context.Context, row *FlowAuditLogRow) error {
	var result []FlowAuditLogRow
	_, err := sc.client.From("flow_audit_log").
		Insert(row, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// GetFlowAuditLog retrieves the transition history for one correlationId,
// oldest first.
func (sc *SupabaseClient) GetFlowAuditLog(ctx context.Context, tenantID, correlationID string) ([]FlowAuditLogRow, error) {
	var rows []FlowAuditLogRow
	_, err := sc.client.From("flow_audit_log").
		Select("*", "", false).
		Eq("correlation_id", correlationID).
		Eq("tenant_id", tenantID).
		Order("created_at", nil).
		ExecuteTo(&rows)
	return rows, err
}

// ============================================================================
// TENANT & API KEY OPERATIONS
// ============================================================================

// GetTenant retrieves a tenant by ID. Returns nil (not error) if absent.
func (sc *SupabaseClient) GetTenant(ctx context.Context, tenantID string) (*Tenant, error) {
	var rows []Tenant
	_, err := sc.client.From("tenants").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// CreateAPIKey persists a new API key row.
func (sc *SupabaseClient) CreateAPIKey(ctx context.Context, key *APIKey) error {
	var result []APIKey
	_, err := sc.client.From("api_keys").
		Insert(key, false, "", "", "").
		ExecuteTo(&result)
	return err
}

// GetAPIKey retrieves an API key row by its public key ID.
func (sc *SupabaseClient) GetAPIKey(ctx context.Context, keyID string) (*APIKey, error) {
	var rows []APIKey
	_, err := sc.client.From("api_keys").
		Select("*", "", false).
		Eq("key_id", keyID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ============================================================================
// CLEARING ENDPOINT OPERATIONS
// ============================================================================

// ListClearingEndpoints retrieves every active clearing endpoint row for a
// tenant, for ClearingEndpointStore.Resolve to rank by specificity.
func (sc *SupabaseClient) ListClearingEndpoints(ctx context.Context, tenantID string) ([]ClearingEndpointRow, error) {
	var rows []ClearingEndpointRow
	_, err := sc.client.From("clearing_endpoints").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		Eq("active", "true").
		ExecuteTo(&rows)
	return rows, err
}

// PutClearingEndpoint creates or updates a clearing endpoint row.
func (sc *SupabaseClient) PutClearingEndpoint(ctx context.Context, row *ClearingEndpointRow) error {
	var result []ClearingEndpointRow
	_, err := sc.client.From("clearing_endpoints").
		Upsert(row, "record_id", "", "").
		ExecuteTo(&result)
	return err
}

// ============================================================================
// FRAUD CONFIG OPERATIONS
// ============================================================================

// GetFraudConfig retrieves the fraud gate configuration row for a tenant.
// Returns nil (not error) when the tenant has no row, so callers fall
// back to fraud package defaults.
func (sc *SupabaseClient) GetFraudConfig(ctx context.Context, tenantID string) (*FraudConfigRow, error) {
	var rows []FraudConfigRow
	_, err := sc.client.From("fraud_configs").
		Select("*", "", false).
		Eq("tenant_id", tenantID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("get fraud config: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// PutFraudConfig creates or updates a tenant's fraud config row.
func (sc *SupabaseClient) PutFraudConfig(ctx context.Context, row *FraudConfigRow) error {
	var result []FraudConfigRow
	_, err := sc.client.From("fraud_configs").
		Upsert(row, "tenant_id", "", "").
		ExecuteTo(&result)
	return err
}

// ============================================================================
// GENERIC HELPERS
// ============================================================================

// InsertRow inserts a single row into any table.
func (sc *SupabaseClient) InsertRow(table string, row interface{}) error {
	_, _, err := sc.client.From(table).Insert(row, false, "", "", "").Execute()
	return err
}

// QueryRows queries rows from a table filtered by a single column.
func (sc *SupabaseClient) QueryRows(table, selectCols, filterCol, filterVal string, dest interface{}) error {
	_, err := sc.client.From(table).
		Select(selectCols, "", false).
		Eq(filterCol, filterVal).
		ExecuteTo(dest)
	return err
}
