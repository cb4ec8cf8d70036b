// Package core holds the domain types shared by every stage of the payment
// scheme pipeline: the routing coordinate, the message tree, flow context,
// and the error taxonomy. Nothing here performs I/O.
package core

import "time"

// Direction classifies which way a MappingDocument or AuthConfig applies.
type Direction string

const (
	DirectionRequest       Direction = "REQUEST"
	DirectionResponse      Direction = "RESPONSE"
	DirectionBidirectional Direction = "BIDIRECTIONAL"
)

// Source distinguishes who originated a flow, for fraud-gate routing.
type Source string

const (
	SourceBankClient     Source = "BANK_CLIENT"
	SourceClearingSystem Source = "CLEARING_SYSTEM"
)

// ResponseMode selects how the orchestrator returns the final result.
type ResponseMode string

const (
	ResponseModeSync    ResponseMode = "SYNC"
	ResponseModeAsync   ResponseMode = "ASYNC"
	ResponseModeWebhook ResponseMode = "WEBHOOK"
)

// PolicyCoordinate pins a policy lookup in the configuration lattice. Empty
// string fields are "not specified" and act as wildcards when matching
// against candidate records.
type PolicyCoordinate struct {
	TenantID            string
	PaymentType         string
	LocalInstrumentCode string
	ClearingSystemCode  string
	Direction           Direction
}

// Matches reports whether a candidate coordinate (as recorded on a policy
// or mapping document) is satisfied by this lookup coordinate. A field left
// empty on the candidate is a wildcard; TenantID on the candidate, when
// non-empty, must match exactly.
func (c PolicyCoordinate) Matches(candidate PolicyCoordinate) bool {
	if candidate.TenantID != "" && candidate.TenantID != c.TenantID {
		return false
	}
	if candidate.PaymentType != "" && candidate.PaymentType != c.PaymentType {
		return false
	}
	if candidate.LocalInstrumentCode != "" && candidate.LocalInstrumentCode != c.LocalInstrumentCode {
		return false
	}
	if candidate.ClearingSystemCode != "" && candidate.ClearingSystemCode != c.ClearingSystemCode {
		return false
	}
	if candidate.Direction != "" && candidate.Direction != DirectionBidirectional && candidate.Direction != c.Direction {
		return false
	}
	return true
}

// MessageKind enumerates the ISO 20022 message types the canonicalizer
// understands.
type MessageKind string

const (
	KindPain001 MessageKind = "pain.001"
	KindPain002 MessageKind = "pain.002"
	KindPacs002 MessageKind = "pacs.002"
	KindPacs004 MessageKind = "pacs.004"
	KindPacs007 MessageKind = "pacs.007"
	KindPacs008 MessageKind = "pacs.008"
	KindPacs028 MessageKind = "pacs.028"
	KindCamt029 MessageKind = "camt.029"
	KindCamt053 MessageKind = "camt.053"
	KindCamt054 MessageKind = "camt.054"
	KindCamt055 MessageKind = "camt.055"
	KindCamt056 MessageKind = "camt.056"
)

// GroupStatus is the ISO 20022 GrpSts code surfaced to clients.
type GroupStatus string

const (
	StatusACSC GroupStatus = "ACSC" // accepted, settlement completed
	StatusACSP GroupStatus = "ACSP" // accepted, in progress
	StatusPDNG GroupStatus = "PDNG" // pending
	StatusRJCT GroupStatus = "RJCT" // rejected
)

// ReasonCode is the ISO 20022 Rsn.Cd carried alongside a GroupStatus.
type ReasonCode string

const (
	ReasonNone       ReasonCode = "G000"
	ReasonDuplicate  ReasonCode = "DUPL"
	ReasonFraud      ReasonCode = "FRAUD"
	ReasonReview     ReasonCode = "REVIEW"
	ReasonNarrative  ReasonCode = "NARR"
	ReasonValidation ReasonCode = "VALIDATION"
)

// FraudDecision is the verdict returned by the fraud/risk gate.
type FraudDecision string

const (
	DecisionApprove      FraudDecision = "APPROVE"
	DecisionReject       FraudDecision = "REJECT"
	DecisionManualReview FraudDecision = "MANUAL_REVIEW"
)

// RiskLevel buckets the FraudAssessment's riskScore.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// AssessmentType distinguishes real-time from batch fraud review.
type AssessmentType string

const (
	AssessmentRealTime AssessmentType = "REAL_TIME"
	AssessmentBatch    AssessmentType = "BATCH"
)

// FraudAssessment is immutable once Decision is set. ErrorMessage is
// populated only when the engine call itself failed and the gate
// fail-safed to MANUAL_REVIEW.
type FraudAssessment struct {
	AssessmentID string
	MessageID    string
	TenantID     string
	Source       Source
	Type         AssessmentType
	Status       string // OK | ERROR
	Decision     FraudDecision
	RiskLevel    RiskLevel
	RiskScore    float64
	Reason       string
	ErrorMessage string
	CreatedAt    time.Time
}

// FlowRoute names one of the enumerated ingress/egress message-kind
// quadruplets the orchestrator can drive through its state machine.
type FlowRoute struct {
	IngressKind   MessageKind
	RequestKind   MessageKind
	ResponseKind  MessageKind
	ClientAckKind MessageKind
}

var (
	// RouteCustomerCredit is the canonical outbound flow: pain.001 -> pacs.008
	// -> pacs.002 -> pain.002.
	RouteCustomerCredit = FlowRoute{KindPain001, KindPacs008, KindPacs002, KindPain002}
	// RouteClearingInbound handles a clearing-originated credit transfer that
	// this gateway must acknowledge: pacs.008 -> (internal) -> pacs.002.
	RouteClearingInbound = FlowRoute{KindPacs008, KindPacs008, KindPacs002, KindPacs002}
	// RouteReturn maps a clearing return back to a client status report.
	RouteReturn = FlowRoute{KindPacs004, KindPacs004, KindPacs002, KindPain002}
	// RouteCancellationRequest handles camt.055 -> pacs.007.
	RouteCancellationRequest = FlowRoute{KindCamt055, KindPacs007, KindPacs002, KindCamt029}
	// RouteStatusInquiry handles camt.056 -> pacs.028.
	RouteStatusInquiry = FlowRoute{KindCamt056, KindPacs028, KindPacs002, KindCamt029}
	// RouteNotification handles camt.054 -> camt.053, a one-way notification
	// with no clearing round trip.
	RouteNotification = FlowRoute{KindCamt054, KindCamt054, "", KindCamt053}
	// RouteStatusReport handles an unsolicited pacs.002 pushed by a clearing
	// system: internal processing only, acknowledged to the client as
	// pain.002.
	RouteStatusReport = FlowRoute{KindPacs002, KindPacs002, "", KindPain002}
	// RouteInvestigationResolution handles an inbound camt.029 (resolution
	// of investigation): internal processing only, acknowledged to the
	// client as pain.002.
	RouteInvestigationResolution = FlowRoute{KindCamt029, KindCamt029, "", KindPain002}
	// RouteStatusRequestInbound handles an unsolicited pacs.028 pushed by a
	// clearing system: internal processing only, acknowledged to the client
	// as pain.002.
	RouteStatusRequestInbound = FlowRoute{KindPacs028, KindPacs028, "", KindPain002}
)

// Kind is the error taxonomy from the error-handling design: a closed set
// of reasons a pipeline stage can fail, independent of the Go error text.
type Kind string

const (
	KindValidation          Kind = "VALIDATION"
	KindConfigurationMissing Kind = "CONFIGURATION_MISSING"
	KindFraudRejected       Kind = "FRAUD_REJECTED"
	KindFraudReview         Kind = "FRAUD_REVIEW"
	KindMappingFailed       Kind = "MAPPING_FAILED"
	KindDispatchTransient   Kind = "DISPATCH_TRANSIENT"
	KindDispatchPermanent   Kind = "DISPATCH_PERMANENT"
	KindCircuitOpen         Kind = "CIRCUIT_OPEN"
	KindSaturated           Kind = "SATURATED"
	KindTimedOut            Kind = "TIMED_OUT"
	KindCancelled           Kind = "CANCELLED"
	KindDuplicate           Kind = "DUPLICATE"
	KindInternal            Kind = "INTERNAL"
)

// Stage names a pipeline stage, used for diagnostics on Error and for
// message-flow tracking records.
type Stage string

const (
	StageIngress     Stage = "INGRESS"
	StageParse       Stage = "PARSED"
	StagePolicy      Stage = "POLICY_RESOLVED"
	StageFraud       Stage = "FRAUD_CHECKED"
	StageMap         Stage = "MAPPED"
	StageDispatch    Stage = "DISPATCHED"
	StageClearingAck Stage = "CLEARING_ACK"
	StageResponseMap Stage = "RESPONSE_MAPPED"
	StageEmit        Stage = "EMITTED"

	// Terminal short-circuit stages the orchestrator's state machine can
	// land on without completing the full INGRESS..EMITTED walk.
	StageFlowRejected    Stage = "FLOW_REJECTED"
	StageFlowPending     Stage = "FLOW_PENDING"
	StageFallbackEmitted Stage = "FALLBACK_EMITTED"
)

// WebhookStatus is the delivery-state machine of an async response.
type WebhookStatus string

const (
	WebhookPending    WebhookStatus = "PENDING"
	WebhookDelivering WebhookStatus = "DELIVERING"
	WebhookDelivered  WebhookStatus = "DELIVERED"
	WebhookRetrying   WebhookStatus = "RETRYING"
	WebhookFailed     WebhookStatus = "FAILED"
	WebhookGivenUp    WebhookStatus = "GIVEN_UP"
)

// WebhookDeliveryResult is the outcome of one delivery attempt.
type WebhookDeliveryResult struct {
	StatusCode int
	Body       string
	Error      string
	AttemptedAt time.Time
}

// WebhookDelivery is a tenant-bound async handoff of an emitted response.
// The Flow Orchestrator constructs it and hands it to the Webhook Delivery
// Engine, which owns it exclusively from that point on (keyed by
// CorrelationID).
type WebhookDelivery struct {
	CorrelationID string
	TargetURL     string
	Payload       Message
	Headers       map[string]string
	TenantID      string
	MessageType   MessageKind
	Status        WebhookStatus
	Attempt       int
	MaxAttempts   int
	BaseDelay     time.Duration
	Result        *WebhookDeliveryResult
}
