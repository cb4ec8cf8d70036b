package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/dispatcher"
	"github.com/ocx/paygate/internal/fraud"
	"github.com/ocx/paygate/internal/mapping"
	"github.com/ocx/paygate/internal/policy"
)

type fakeFraudClient struct {
	decision core.FraudDecision
	err      error
}

func (f *fakeFraudClient) Assess(ctx context.Context, requestBody map[string]interface{}) (fraud.EngineResponse, error) {
	if f.err != nil {
		return fraud.EngineResponse{}, f.err
	}
	return fraud.EngineResponse{Decision: f.decision, RiskLevel: core.RiskLow, RiskScore: 0.1}, nil
}

func pain001Payload(endToEndID string) []byte {
	body := map[string]interface{}{
		"GrpHdr": map[string]interface{}{
			"MsgId":   "MSG-" + endToEndID,
			"CreDtTm": "2026-07-31T10:00:00Z",
			"NbOfTxs": 1,
		},
		"PmtInf": map[string]interface{}{
			"PmtInfId": "PMT-1",
			"Dbtr":     map[string]interface{}{"Nm": "Alice"},
			"CdtTrfTxInf": map[string]interface{}{
				"PmtId": map[string]interface{}{"EndToEndId": endToEndID},
				"Amt":   map[string]interface{}{"InstdAmt": "100.00"},
				"Cdtr":  map[string]interface{}{"Nm": "Bob"},
			},
		},
	}
	raw, _ := json.Marshal(body)
	return raw
}

func newOrchestratorForTest(t *testing.T, fraudClient fraud.Client, endpoint string) *Orchestrator {
	t.Helper()
	store := policy.NewInMemoryStore()
	resolver := policy.NewResolver(store)
	store.PutAuthRecord(policy.AuthRecord{
		Name:     "default",
		Level:    policy.LevelClearingSystem,
		Active:   true,
		Priority: 1,
		Config:   policy.AuthConfig{Method: policy.AuthAPIKey, APIKey: &policy.APIKeyConfig{Key: "test-key"}},
	})

	gate := fraud.NewGate(fraudClient)
	mappingEngine := mapping.NewEngine(mapping.NewInMemorySequenceStore())
	dispatchers := dispatcher.NewRegistry(nil)

	endpoints := func(ctx context.Context, coordinate core.PolicyCoordinate) (string, string, error) {
		return endpoint, "clearing-system", nil
	}

	return New(resolver, gate, func(string) fraud.TenantConfig { return fraud.TenantConfig{} },
		mappingEngine, dispatchers, endpoints)
}

func TestOrchestrator_Handle_CustomerCreditHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"responseCode": "ACSC",
			"payload": map[string]interface{}{
				"TxInfAndSts": map[string]interface{}{
					"OrgnlEndToEndId": "E2E-1",
					"TxSts":           "ACSC",
				},
			},
		})
	}))
	defer srv.Close()

	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, srv.URL)

	req := IngressRequest{
		TenantID:     "tenant-a",
		Kind:         core.KindPain001,
		ResponseMode: core.ResponseModeSync,
		Raw:          pain001Payload("E2E-1"),
	}

	result, err := o.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, core.StatusACSC, result.Status)
	assert.NotEmpty(t, result.CorrelationID)
	require.NotNil(t, result.Message)
}

func TestOrchestrator_Handle_FraudRejectShortCircuits(t *testing.T) {
	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionReject}, "http://unused.invalid")

	req := IngressRequest{
		TenantID:     "tenant-a",
		Kind:         core.KindPain001,
		ResponseMode: core.ResponseModeSync,
		Raw:          pain001Payload("E2E-2"),
	}

	result, err := o.Handle(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, core.StatusRJCT, result.Status)
	assert.Equal(t, core.ReasonFraud, result.Reason)
}

func TestOrchestrator_Handle_FraudManualReviewIsPending(t *testing.T) {
	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionManualReview}, "http://unused.invalid")

	req := IngressRequest{
		TenantID:     "tenant-a",
		Kind:         core.KindPain001,
		ResponseMode: core.ResponseModeSync,
		Raw:          pain001Payload("E2E-3"),
	}

	result, err := o.Handle(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, core.StatusPDNG, result.Status)
	assert.Equal(t, core.ReasonReview, result.Reason)
}

func TestOrchestrator_Handle_ValidationFailureRejects(t *testing.T) {
	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, "http://unused.invalid")

	req := IngressRequest{
		TenantID:     "tenant-a",
		Kind:         core.KindPain001,
		ResponseMode: core.ResponseModeSync,
		Raw:          []byte(`{"GrpHdr":{"MsgId":"MSG-1"}}`),
	}

	result, err := o.Handle(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, core.StatusRJCT, result.Status)
	assert.Equal(t, core.ReasonValidation, result.Reason)
}

func TestOrchestrator_Handle_UnsupportedKindRejects(t *testing.T) {
	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, "http://unused.invalid")

	req := IngressRequest{
		TenantID: "tenant-a",
		Kind:     core.MessageKind("bogus.999"),
		Raw:      []byte(`{}`),
	}

	_, err := o.Handle(context.Background(), req)
	assert.Error(t, err)
}

func TestOrchestrator_Handle_DuplicateInFlightMessageIsRejected(t *testing.T) {
	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, "http://unused.invalid")
	raw := pain001Payload("E2E-DUP")

	claimed, err := o.dedup.Claim(context.Background(), "tenant-a", "MSG-E2E-DUP", time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	req := IngressRequest{TenantID: "tenant-a", Kind: core.KindPain001, ResponseMode: core.ResponseModeSync, Raw: raw}
	result, handleErr := o.Handle(context.Background(), req)
	require.Error(t, handleErr)
	assert.Equal(t, core.StatusRJCT, result.Status)
	assert.Equal(t, core.ReasonDuplicate, result.Reason)
}

func TestOrchestrator_Handle_ReleasesClaimAfterCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"responseCode": "ACSC"})
	}))
	defer srv.Close()

	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, srv.URL)
	raw := pain001Payload("E2E-RELEASE")

	req := IngressRequest{TenantID: "tenant-a", Kind: core.KindPain001, ResponseMode: core.ResponseModeSync, Raw: raw}
	_, err := o.Handle(context.Background(), req)
	require.NoError(t, err)

	claimed, claimErr := o.dedup.Claim(context.Background(), "tenant-a", "MSG-E2E-RELEASE", time.Minute)
	require.NoError(t, claimErr)
	assert.True(t, claimed, "the completed flow must have released its claim")
}

func TestOrchestrator_Handle_DispatchFallbackEmitsNegativeAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := newOrchestratorForTest(t, &fakeFraudClient{decision: core.DecisionApprove}, srv.URL)
	o.dispatchers.SetDefault("clearing-system", dispatcherPolicyWithNoRetry())

	req := IngressRequest{
		TenantID:     "tenant-a",
		Kind:         core.KindPain001,
		ResponseMode: core.ResponseModeSync,
		Raw:          pain001Payload("E2E-FALLBACK"),
	}

	result, err := o.Handle(context.Background(), req)
	assert.NoError(t, err)
	assert.Equal(t, core.StageFallbackEmitted, result.Stage)
	assert.Equal(t, core.StatusRJCT, result.Status)
}

func dispatcherPolicyWithNoRetry() dispatcher.ResiliencePolicy {
	p := dispatcher.DefaultPolicy()
	p.RetryMaxAttempts = 1
	return p
}
