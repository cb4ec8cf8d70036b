// Package database — configuration and flow-audit data models mirroring
// the Supabase-backed configuration surface policy.Store and the
// orchestrator read through.
package database

import (
	"encoding/json"
	"time"
)

// AuthConfigRow mirrors the auth_configs table: one row per (level,
// coordinate, name) tuple. Config carries the tagged AuthConfig payload
// as JSON since its shape varies by Method.
type AuthConfigRow struct {
	RecordID            string          `json:"record_id,omitempty"`
	Name                string          `json:"name"`
	Level               string          `json:"level"`
	TenantID             string          `json:"tenant_id"`
	PaymentType         string          `json:"payment_type,omitempty"`
	LocalInstrumentCode string          `json:"local_instrument_code,omitempty"`
	ClearingSystemCode  string          `json:"clearing_system_code,omitempty"`
	Direction           string          `json:"direction,omitempty"`
	Config              json.RawMessage `json:"config"`
	Priority            int             `json:"priority"`
	Active              bool            `json:"active"`
	CreatedAt           string          `json:"created_at,omitempty"`
	UpdatedAt           string          `json:"updated_at,omitempty"`
}

// MappingDocumentRow mirrors the mapping_documents table. Clauses are
// stored as JSON since each clause is a tagged variant.
type MappingDocumentRow struct {
	DocumentID          string          `json:"document_id,omitempty"`
	Name                string          `json:"name"`
	TenantID             string          `json:"tenant_id"`
	PaymentType         string          `json:"payment_type,omitempty"`
	LocalInstrumentCode string          `json:"local_instrument_code,omitempty"`
	ClearingSystemCode  string          `json:"clearing_system_code,omitempty"`
	Direction           string          `json:"direction"`
	Priority            int             `json:"priority"`
	Active              bool            `json:"active"`
	Version             int             `json:"version"`
	Clauses             json.RawMessage `json:"clauses"`
	CreatedAt           string          `json:"created_at,omitempty"`
	UpdatedAt           string          `json:"updated_at,omitempty"`
}

// ResiliencePolicyRow mirrors the resilience_policies table: one row per
// (service_name, tenant_id), consulted by the dispatcher's registry on
// cache miss.
type ResiliencePolicyRow struct {
	PolicyID                string  `json:"policy_id,omitempty"`
	ServiceName             string  `json:"service_name"`
	TenantID                string  `json:"tenant_id"`
	MaxRequests             int     `json:"max_requests"`
	IntervalSeconds         int     `json:"interval_seconds"`
	TimeoutSeconds          int     `json:"timeout_seconds"`
	MinimumCalls            int     `json:"minimum_calls"`
	FailureRateThreshold    float64 `json:"failure_rate_threshold"`
	SlowCallDurationMillis  int     `json:"slow_call_duration_millis"`
	SlowCallRateThreshold   float64 `json:"slow_call_rate_threshold"`
	RetryMaxAttempts        int     `json:"retry_max_attempts"`
	RetryBaseWaitMillis     int     `json:"retry_base_wait_millis"`
	RetryMaxWaitMillis      int     `json:"retry_max_wait_millis"`
	RetryMultiplier         float64 `json:"retry_multiplier"`
	BulkheadMaxConcurrent   int     `json:"bulkhead_max_concurrent"`
	BulkheadMaxWaitMillis   int     `json:"bulkhead_max_wait_millis"`
	TimeLimiterMillis       int     `json:"time_limiter_millis"`
	RateLimitPerSecond      float64 `json:"rate_limit_per_second"`
	RateLimitBurst          int     `json:"rate_limit_burst"`
	HealthCheckIntervalSecs int     `json:"health_check_interval_seconds"`
	UpdatedAt               string  `json:"updated_at,omitempty"`
}

// FraudAssessmentRow mirrors the fraud_assessments table: append-only,
// immutable once written per core.FraudAssessment's lifecycle rule.
type FraudAssessmentRow struct {
	AssessmentID string  `json:"assessment_id"`
	MessageID    string  `json:"message_id"`
	TenantID     string  `json:"tenant_id"`
	Source       string  `json:"source"`
	Type         string  `json:"type"`
	Status       string  `json:"status"`
	Decision     string  `json:"decision"`
	RiskLevel    string  `json:"risk_level"`
	RiskScore    float64 `json:"risk_score"`
	Reason       string  `json:"reason,omitempty"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// WebhookDeliveryRow mirrors the webhook_deliveries table.
type WebhookDeliveryRow struct {
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id"`
	TargetURL     string          `json:"target_url"`
	MessageType   string          `json:"message_type"`
	Payload       json.RawMessage `json:"payload"`
	Headers       json.RawMessage `json:"headers,omitempty"`
	Status        string          `json:"status"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   int             `json:"max_attempts"`
	BaseDelayMs   int             `json:"base_delay_millis"`
	ResultCode    int             `json:"result_code,omitempty"`
	ResultError   string          `json:"result_error,omitempty"`
	CreatedAt     string          `json:"created_at,omitempty"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
}

// FlowAuditLogRow mirrors the flow_audit_log table: one row per
// FlowContext transition, for cross-process observability of the
// orchestrator's state machine.
type FlowAuditLogRow struct {
	LogID         string `json:"log_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	TenantID      string `json:"tenant_id"`
	Stage         string `json:"stage"`
	Status        string `json:"status"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
}

// Tenant is one onboarded client of the gateway: the (tenantId, ...)
// coordinate every other row is scoped by resolves to one of these.
type Tenant struct {
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"` // ACTIVE, TRIAL, SUSPENDED
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// APIKey is an ingress credential scoped to one tenant, stored as
// ocx_<keyId>.<secret> with only the secret's bcrypt hash persisted.
type APIKey struct {
	KeyID     string     `json:"key_id"`
	TenantID  string     `json:"tenant_id"`
	Name      string     `json:"name"`
	KeyHash   string     `json:"key_hash"`
	Scopes    []string   `json:"scopes"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// ClearingEndpointRow mirrors the clearing_endpoints table: the outbound
// URL and dispatcher service name a coordinate's clearing leg should use,
// matched the same way auth_configs is — most specific (tenant +
// clearingSystemCode) wins, falling back to a tenant-wide default row
// with clearing_system_code left blank.
type ClearingEndpointRow struct {
	RecordID           string `json:"record_id,omitempty"`
	TenantID           string `json:"tenant_id"`
	ClearingSystemCode string `json:"clearing_system_code,omitempty"`
	PaymentType        string `json:"payment_type,omitempty"`
	ServiceName        string `json:"service_name"`
	Endpoint           string `json:"endpoint"`
	Priority           int    `json:"priority"`
	Active             bool   `json:"active"`
}

// FraudConfigRow mirrors the fraud_configs table: one row per tenant
// configuring the Fraud Gate's request template, deadline, and the
// paymentType/localInstrumentCode tokens that mark a flow
// clearing-originated for fraud.DetermineSource.
type FraudConfigRow struct {
	TenantID                 string          `json:"tenant_id"`
	DeadlineMillis           int             `json:"deadline_millis"`
	RequestTemplate          json.RawMessage `json:"request_template,omitempty"`
	ClearingPaymentTypes     []string        `json:"clearing_payment_types,omitempty"`
	ClearingLocalInstruments []string        `json:"clearing_local_instruments,omitempty"`
	UpdatedAt                string          `json:"updated_at,omitempty"`
}
