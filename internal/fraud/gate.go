package fraud

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/paygate/internal/core"
)

const defaultDeadline = 30 * time.Second

// TenantConfig is the per-tenant fraud gate configuration resolved by the
// caller (policy.Resolver is coordinate-based; fraud configuration is
// flatter and keyed by tenant alone, so the orchestrator supplies it
// directly rather than the Gate resolving it itself).
type TenantConfig struct {
	Deadline        time.Duration
	RequestTemplate Template
	// ClearingPaymentTypes and ClearingLocalInstruments enumerate the
	// paymentType/localInstrumentCode tokens that mark a flow as
	// clearing-originated for source determination.
	ClearingPaymentTypes     []string
	ClearingLocalInstruments []string
}

// Gate is the synchronous Fraud/Risk Assessment Gate (component C): it
// builds a request from the inbound message, calls the tenant's
// configured engine client, and interprets the response into a
// FraudAssessment. Any client error fails safe to MANUAL_REVIEW rather
// than blocking or silently approving the flow.
type Gate struct {
	client Client
}

// NewGate returns a Gate calling client for every assessment.
func NewGate(client Client) *Gate {
	return &Gate{client: client}
}

// Assess evaluates message against coordinate's tenant, returning a
// FraudAssessment whose Decision is always one of APPROVE, REJECT, or
// MANUAL_REVIEW — callers never see the underlying client error.
func (g *Gate) Assess(ctx context.Context, message core.Message, coordinate core.PolicyCoordinate, source core.Source, cfg TenantConfig) core.FraudAssessment {
	assessment := core.FraudAssessment{
		AssessmentID: uuid.NewString(),
		TenantID:     coordinate.TenantID,
		Source:       source,
		Type:         core.AssessmentRealTime,
		CreatedAt:    time.Now().UTC(),
	}
	if v, ok := message.Get("_metadata.messageId"); ok {
		if s, ok := v.(string); ok {
			assessment.MessageID = s
		}
	}

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = defaultDeadline
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	transactionReference, _ := extractTransactionReference(message)
	requestBody := BuildRequest(cfg.RequestTemplate, message, assessment, transactionReference)

	resp, err := g.client.Assess(callCtx, requestBody)
	if err != nil {
		slog.Warn("fraud engine call failed, failing safe to manual review",
			"tenantId", coordinate.TenantID, "messageId", assessment.MessageID, "error", err)
		assessment.Status = "ERROR"
		assessment.Decision = core.DecisionManualReview
		assessment.RiskLevel = core.RiskMedium
		assessment.RiskScore = 0.5
		assessment.ErrorMessage = err.Error()
		return assessment
	}

	assessment.Status = "OK"
	assessment.Decision = resp.Decision
	assessment.RiskLevel = resp.RiskLevel
	assessment.RiskScore = resp.RiskScore
	assessment.Reason = resp.Reason

	switch resp.Decision {
	case core.DecisionApprove, core.DecisionReject, core.DecisionManualReview:
		// recognized decision, pass through as-is
	default:
		slog.Warn("fraud engine returned unrecognized decision, failing safe to manual review",
			"tenantId", coordinate.TenantID, "messageId", assessment.MessageID, "decision", resp.Decision)
		assessment.Decision = core.DecisionManualReview
		if assessment.RiskLevel == "" {
			assessment.RiskLevel = core.RiskMedium
		}
	}

	return assessment
}

// DetermineSource classifies a flow as CLEARING_SYSTEM when its
// coordinate's paymentType or localInstrumentCode matches one of the
// tenant's configured clearing-origination tokens, BANK_CLIENT otherwise.
func DetermineSource(coordinate core.PolicyCoordinate, cfg TenantConfig) core.Source {
	for _, t := range cfg.ClearingPaymentTypes {
		if t != "" && t == coordinate.PaymentType {
			return core.SourceClearingSystem
		}
	}
	for _, t := range cfg.ClearingLocalInstruments {
		if t != "" && t == coordinate.LocalInstrumentCode {
			return core.SourceClearingSystem
		}
	}
	return core.SourceBankClient
}

func extractTransactionReference(msg core.Message) (string, bool) {
	for _, path := range []string{
		"CdtTrfTxInf.PmtId.EndToEndId",
		"GrpHdr.MsgId",
		"_metadata.messageId",
	} {
		if v, ok := msg.Get(path); ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}
