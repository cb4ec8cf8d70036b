// Package orchestrator drives the per-flow state machine that ties the
// Configuration Resolver, Payload Mapping Engine, Fraud Gate, ISO 20022
// Canonicalizer, Resilient Dispatcher, and Webhook Delivery Engine
// together, grounded on the teacher's internal/plan package's
// graph-driven-execution idiom (a fixed machine walked step by step, each
// step recorded for later drift/audit inspection).
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ocx/paygate/internal/clearing"
	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/dispatcher"
	"github.com/ocx/paygate/internal/fraud"
	"github.com/ocx/paygate/internal/iso20022"
	"github.com/ocx/paygate/internal/mapping"
	"github.com/ocx/paygate/internal/policy"
)

// ClearingEndpointResolver resolves the outbound URL and dispatcher
// service name a coordinate's clearing leg should use. Kept as a function
// value, like dispatcher.PolicyLookup, so the orchestrator never imports
// internal/database directly.
type ClearingEndpointResolver func(ctx context.Context, coordinate core.PolicyCoordinate) (endpoint, serviceName string, err error)

// FraudConfigLookup resolves the tenant-scoped fraud.TenantConfig.
type FraudConfigLookup func(tenantID string) fraud.TenantConfig

// IngressRequest is the normalized envelope every inbound ISO 20022
// payload arrives as, per spec.md §6: "(tenantId, paymentType,
// localInstrumentCode, responseMode)".
type IngressRequest struct {
	TenantID            string
	PaymentType         string
	LocalInstrumentCode string
	ClearingSystemCode  string
	Kind                core.MessageKind
	ResponseMode        core.ResponseMode
	Raw                 []byte
	WebhookURL          string
}

// Result is what Handle returns: the client-facing outcome of one flow,
// whether resolved synchronously or handed off as a WebhookDelivery.
type Result struct {
	CorrelationID string
	Stage         core.Stage
	Status        core.GroupStatus
	Reason        core.ReasonCode
	Message       core.Message
	Webhook       *core.WebhookDelivery
}

// Orchestrator is component E: it owns no long-lived state of its own
// beyond its collaborators' handles — every FlowContext it creates is
// discarded at the end of Handle.
type Orchestrator struct {
	canonicalizer *iso20022.Canonicalizer
	resolver      *policy.Resolver
	mappingEngine *mapping.Engine
	fraudGate     *fraud.Gate
	fraudConfig   FraudConfigLookup
	dispatchers   *dispatcher.Registry
	endpoints     ClearingEndpointResolver
	webhooks      WebhookEnqueuer
	audit         AuditRecorder
	events        EventPublisher
	dedup         DuplicateGuard

	flowDeadline        time.Duration
	dispatchTimeout     time.Duration
	dedupTTL            time.Duration
	webhookMaxAttempts  int
	webhookBaseDelay    time.Duration

	logger *log.Logger
}

// Option configures optional Orchestrator collaborators; everything not
// set falls back to a safe, inert default so tests can build a minimal
// Orchestrator without wiring every collaborator.
type Option func(*Orchestrator)

func WithWebhooks(w WebhookEnqueuer) Option { return func(o *Orchestrator) { o.webhooks = w } }
func WithAudit(a AuditRecorder) Option      { return func(o *Orchestrator) { o.audit = a } }
func WithEvents(e EventPublisher) Option    { return func(o *Orchestrator) { o.events = e } }
func WithDedup(d DuplicateGuard) Option     { return func(o *Orchestrator) { o.dedup = d } }
func WithFlowDeadline(d time.Duration) Option {
	return func(o *Orchestrator) { o.flowDeadline = d }
}
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.dispatchTimeout = d }
}
func WithWebhookRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(o *Orchestrator) {
		o.webhookMaxAttempts = maxAttempts
		o.webhookBaseDelay = baseDelay
	}
}

// New builds an Orchestrator. resolver, fraudGate, mappingEngine,
// dispatchers, endpoints, and fraudConfig are mandatory collaborators;
// everything else is supplied through Option.
func New(
	resolver *policy.Resolver,
	fraudGate *fraud.Gate,
	fraudConfig FraudConfigLookup,
	mappingEngine *mapping.Engine,
	dispatchers *dispatcher.Registry,
	endpoints ClearingEndpointResolver,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		canonicalizer:      iso20022.NewCanonicalizer(),
		resolver:           resolver,
		mappingEngine:      mappingEngine,
		fraudGate:          fraudGate,
		fraudConfig:        fraudConfig,
		dispatchers:        dispatchers,
		endpoints:          endpoints,
		webhooks:           noopWebhooks{},
		audit:              noopAudit{},
		events:             noopEvents{},
		dedup:              newInMemoryGuard(),
		flowDeadline:       60 * time.Second,
		dispatchTimeout:    30 * time.Second,
		dedupTTL:           5 * time.Minute,
		webhookMaxAttempts: 5,
		webhookBaseDelay:   2 * time.Second,
		logger:             log.New(os.Stdout, "[ORCHESTRATOR] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Handle drives req through the full INGRESS..EMITTED state machine (or
// one of its short-circuits), returning the client-facing Result.
func (o *Orchestrator) Handle(ctx context.Context, req IngressRequest) (Result, error) {
	route, ok := routeFor(req.Kind)
	if !ok {
		return Result{Status: core.StatusRJCT, Reason: core.ReasonValidation},
			core.NewError(core.KindValidation, core.StageParse, fmt.Errorf("unsupported ingress kind %q", req.Kind))
	}

	msg, err := o.canonicalizer.Parse(req.Kind, req.Raw)
	if err != nil {
		flow := core.NewFlowContext(ctx, uuid.NewString(), uuid.NewString(), req.TenantID, core.PolicyCoordinate{TenantID: req.TenantID}, route, req.ResponseMode, o.flowDeadline)
		defer flow.Release()
		o.track(flow, core.StageFlowRejected, "PARSE_ERROR", map[string]string{"error": err.Error()})
		return o.terminal(flow, req, core.StatusRJCT, core.ReasonValidation, core.StageFlowRejected,
				o.negativeAck(flow, route, core.StatusRJCT, core.ReasonValidation)),
			core.NewError(core.KindValidation, core.StageParse, err)
	}

	messageID, ok := iso20022.MessageID(req.Kind, msg)
	if !ok {
		messageID = uuid.NewString()
	}

	coordinate := core.PolicyCoordinate{
		TenantID:            req.TenantID,
		PaymentType:         req.PaymentType,
		LocalInstrumentCode: req.LocalInstrumentCode,
		ClearingSystemCode:  req.ClearingSystemCode,
		Direction:           core.DirectionRequest,
	}

	correlationID := uuid.NewString()
	flow := core.NewFlowContext(ctx, correlationID, messageID, req.TenantID, coordinate, route, req.ResponseMode, o.flowDeadline)
	defer flow.Release()

	validation := o.canonicalizer.Validate(req.Kind, msg)
	if !validation.Valid {
		o.track(flow, core.StageFlowRejected, "VALIDATION", map[string]string{"errors": fmt.Sprint(validation.Errors)})
		return o.terminal(flow, req, core.StatusRJCT, core.ReasonValidation, core.StageFlowRejected,
				o.negativeAck(flow, route, core.StatusRJCT, core.ReasonValidation)),
			core.NewError(core.KindValidation, core.StageParse, fmt.Errorf("validation failed: %v", validation.Errors))
	}

	claimed, err := o.dedup.Claim(ctx, req.TenantID, messageID, o.dedupTTL)
	if err != nil {
		o.logger.Printf("dedup claim error tenant=%s messageId=%s: %v", req.TenantID, messageID, err)
	} else if !claimed {
		o.track(flow, core.StageFlowRejected, "DUPLICATE", nil)
		return o.terminal(flow, req, core.StatusRJCT, core.ReasonDuplicate, core.StageFlowRejected,
				o.negativeAck(flow, route, core.StatusRJCT, core.ReasonDuplicate)),
			core.NewError(core.KindDuplicate, core.StageIngress, fmt.Errorf("message %s already in flight for tenant %s", messageID, req.TenantID))
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.dedup.Release(releaseCtx, req.TenantID, messageID); err != nil {
			o.logger.Printf("dedup release error tenant=%s messageId=%s: %v", req.TenantID, messageID, err)
		}
	}()

	o.track(flow, core.StageParse, "OK", nil)

	result, handleErr := o.drive(flow, req, route, msg, coordinate)
	if handleErr != nil {
		kind := core.KindOf(handleErr)
		status, reason := kind.StatusAndReason()
		o.track(flow, core.StageFlowRejected, string(kind), map[string]string{"error": handleErr.Error()})
		return o.terminal(flow, req, status, reason, core.StageFlowRejected,
			o.negativeAck(flow, route, status, reason)), handleErr
	}
	return result, nil
}

// drive executes the POLICY_RESOLVED..EMITTED portion of the machine once
// INGRESS/PARSED have already succeeded.
func (o *Orchestrator) drive(flow *core.FlowContext, req IngressRequest, route core.FlowRoute, msg core.Message, coordinate core.PolicyCoordinate) (Result, error) {
	auth, _, err := o.resolver.Resolve(flow.Context(), coordinate)
	if err != nil {
		return Result{}, core.NewError(core.KindConfigurationMissing, core.StagePolicy, err)
	}
	o.track(flow, core.StagePolicy, "OK", nil)

	fraudCfg := o.fraudConfig(req.TenantID)
	source := fraud.DetermineSource(coordinate, fraudCfg)
	assessment := o.fraudGate.Assess(flow.Context(), msg, coordinate, source, fraudCfg)
	o.track(flow, core.StageFraud, string(assessment.Decision), map[string]string{"assessmentId": assessment.AssessmentID})

	switch assessment.Decision {
	case core.DecisionReject:
		return o.terminal(flow, req, core.StatusRJCT, core.ReasonFraud, core.StageFlowRejected,
			o.negativeAck(flow, route, core.StatusRJCT, core.ReasonFraud)), nil
	case core.DecisionManualReview:
		return o.terminal(flow, req, core.StatusPDNG, core.ReasonReview, core.StageFlowPending,
			o.negativeAck(flow, route, core.StatusPDNG, core.ReasonReview)), nil
	}

	requestMsg, err := o.transform(flow, coordinate, core.DirectionRequest, route.IngressKind, msg)
	if err != nil {
		return Result{}, core.NewError(core.KindMappingFailed, core.StageMap, err)
	}
	o.track(flow, core.StageMap, "OK", nil)

	var clearingAck core.Message
	if requiresDispatch(route.IngressKind) {
		clearingAck, err = o.dispatch(flow, coordinate, auth, route, requestMsg)
		if err != nil {
			return o.fallbackResult(flow, req, route, err), nil
		}
	} else if route.ResponseKind != "" {
		clearingAck = o.canonicalizer.Emit(requestMsg, route.ResponseKind, flow, iso20022.AgentBlock{}, 1)
	} else {
		clearingAck = requestMsg
	}
	o.track(flow, core.StageClearingAck, "OK", nil)

	sourceKindForResponse := route.ResponseKind
	if sourceKindForResponse == "" {
		sourceKindForResponse = route.RequestKind
	}
	clientAck, err := o.transform(flow, coordinate, core.DirectionResponse, sourceKindForResponse, clearingAck)
	if err != nil {
		return Result{}, core.NewError(core.KindMappingFailed, core.StageResponseMap, err)
	}
	o.track(flow, core.StageResponseMap, "OK", nil)

	status, reason := statusFromAck(clearingAck)
	final := o.canonicalizer.Emit(clientAck, route.ClientAckKind, flow, iso20022.AgentBlock{}, 1)
	o.track(flow, core.StageEmit, string(status), nil)

	return o.terminal(flow, req, status, reason, core.StageEmit, final), nil
}

// transform applies the effective MappingDocument for (coordinate,
// direction) if one exists, falling back to the built-in transformation
// keyed by sourceKind per §4.D.
func (o *Orchestrator) transform(flow *core.FlowContext, coordinate core.PolicyCoordinate, direction core.Direction, sourceKind core.MessageKind, source core.Message) (core.Message, error) {
	doc, err := o.resolver.EffectiveMapping(flow.Context(), coordinate, direction)
	if err != nil {
		return nil, fmt.Errorf("resolve mapping document: %w", err)
	}
	if doc != nil {
		return o.mappingEngine.Apply(flow.Context(), doc, coordinate.TenantID, source)
	}
	if out, ok := o.canonicalizer.Transform(sourceKind, source, flow); ok {
		return out, nil
	}
	return nil, fmt.Errorf("no mapping document or builtin transform for %s", sourceKind)
}

// dispatch posts requestMsg to the clearing endpoint through the
// Resilient Dispatcher and parses the clearing-system response as the
// route's ResponseKind.
func (o *Orchestrator) dispatch(flow *core.FlowContext, coordinate core.PolicyCoordinate, auth policy.AuthConfig, route core.FlowRoute, requestMsg core.Message) (core.Message, error) {
	endpoint, serviceName, err := o.endpoints(flow.Context(), coordinate)
	if err != nil {
		return nil, core.NewError(core.KindConfigurationMissing, core.StageDispatch, err)
	}

	client := clearing.NewClient(endpoint, o.dispatchTimeout, auth, "")
	d := o.dispatchers.Get(serviceName, coordinate.TenantID)
	resp := d.Execute(flow.Context(), client.Call(requestMsg))
	if resp.IsFallback {
		return nil, fmt.Errorf("dispatch fallback: %s", resp.ResponseMessage)
	}

	ack := resp.Payload
	if ack == nil {
		ack = core.NewMessage()
	}
	return o.canonicalizer.Emit(ack, route.ResponseKind, flow, iso20022.AgentBlock{}, 1), nil
}

// fallbackResult builds the DISPATCHED→FALLBACK_EMITTED terminal outcome:
// the clearing call exhausted every resilience primitive, so the flow
// emits a negative ack rather than propagating a raw dispatch error.
func (o *Orchestrator) fallbackResult(flow *core.FlowContext, req IngressRequest, route core.FlowRoute, dispatchErr error) Result {
	kind := core.KindOf(dispatchErr)
	status, reason := kind.StatusAndReason()
	o.track(flow, core.StageFallbackEmitted, string(kind), map[string]string{"error": dispatchErr.Error()})
	return o.terminal(flow, req, status, reason, core.StageFallbackEmitted,
		o.negativeAck(flow, route, status, reason))
}

// terminal builds the Result for a flow that has reached a terminal
// stage, enqueuing a WebhookDelivery instead of returning Message inline
// when the caller asked for ASYNC/WEBHOOK responseMode.
func (o *Orchestrator) terminal(flow *core.FlowContext, req IngressRequest, status core.GroupStatus, reason core.ReasonCode, stage core.Stage, message ...core.Message) Result {
	var correlationID string
	if flow != nil {
		correlationID = flow.CorrelationID
	}

	var msg core.Message
	if len(message) > 0 {
		msg = message[0]
	}

	result := Result{
		CorrelationID: correlationID,
		Stage:         stage,
		Status:        status,
		Reason:        reason,
		Message:       msg,
	}

	if msg == nil || req.ResponseMode == core.ResponseModeSync {
		return result
	}

	delivery := core.WebhookDelivery{
		CorrelationID: correlationID,
		TargetURL:     req.WebhookURL,
		Payload:       msg,
		Headers:       map[string]string{},
		TenantID:      req.TenantID,
		Status:        core.WebhookPending,
		MaxAttempts:   o.webhookMaxAttempts,
		BaseDelay:     o.webhookBaseDelay,
	}
	if flow != nil {
		delivery.MessageType = flow.Route.ClientAckKind
	}

	if err := o.webhooks.Enqueue(context.Background(), delivery); err != nil {
		o.logger.Printf("webhook enqueue failed correlationId=%s: %v", correlationID, err)
	}
	result.Webhook = &delivery
	result.Message = nil
	return result
}

// track records a transition both on the in-memory FlowContext audit
// trail and (best-effort) on the durable AuditRecorder and live event
// stream.
func (o *Orchestrator) track(flow *core.FlowContext, stage core.Stage, status string, metadata map[string]string) {
	flow.Record(stage, status, metadata)

	record := core.TransitionRecord{
		CorrelationID: flow.CorrelationID,
		Stage:         stage,
		Status:        status,
		Timestamp:     time.Now(),
		Metadata:      metadata,
	}
	if err := o.audit.Record(flow.Context(), flow.TenantID, record); err != nil {
		o.logger.Printf("audit record failed correlationId=%s stage=%s: %v", flow.CorrelationID, stage, err)
	}
	o.events.Emit("flow.transition", "orchestrator", flow.CorrelationID, map[string]interface{}{
		"tenantId": flow.TenantID,
		"stage":    string(stage),
		"status":   status,
	})
}
