// Package fraud implements the synchronous Fraud/Risk Assessment Gate:
// it assembles a request from the inbound message, calls the bank's
// configured fraud engine, and interprets the decision into a
// FraudAssessment that short-circuits the flow on REJECT or
// MANUAL_REVIEW.
package fraud

import (
	"context"

	"github.com/ocx/paygate/internal/core"
)

// EngineResponse is the subset of the fraud engine's response the gate
// interprets; Reason is optional.
type EngineResponse struct {
	Decision  core.FraudDecision
	RiskLevel core.RiskLevel
	RiskScore float64
	Reason    string
}

// Client calls the configured bank fraud/risk engine. Implementations
// (HTTP/JSON default, optional gRPC) must honor ctx's deadline and return
// a plain error on any failure — the Gate is responsible for fail-safing
// errors to MANUAL_REVIEW, not the client.
type Client interface {
	Assess(ctx context.Context, requestBody map[string]interface{}) (EngineResponse, error)
}
