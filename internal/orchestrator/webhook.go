package orchestrator

import (
	"context"

	"github.com/ocx/paygate/internal/core"
)

// WebhookEnqueuer hands a constructed WebhookDelivery off to the Webhook
// Delivery Engine, which owns it exclusively from that point on. Enqueue
// must not block on the delivery attempt itself — only on admission.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, delivery core.WebhookDelivery) error
}

// AuditRecorder persists one (correlationId, stage, status, timestamp,
// metadata) transition record, the durable counterpart to FlowContext's
// in-memory Transitions().
type AuditRecorder interface {
	Record(ctx context.Context, tenantID string, record core.TransitionRecord) error
}

// EventPublisher broadcasts a flow transition to the live status stream.
// Satisfied directly by *events.EventBus.
type EventPublisher interface {
	Emit(eventType, source, subject string, data map[string]interface{})
}

// noopAudit discards every record; used when no durable AuditRecorder is
// configured so the orchestrator never needs a nil check on the hot path.
type noopAudit struct{}

func (noopAudit) Record(context.Context, string, core.TransitionRecord) error { return nil }

// noopEvents discards every publish.
type noopEvents struct{}

func (noopEvents) Emit(string, string, string, map[string]interface{}) {}

// noopWebhooks rejects every enqueue; a real deployment must always
// configure a WebhookEnqueuer if it accepts ASYNC/WEBHOOK responseMode.
type noopWebhooks struct{}

func (noopWebhooks) Enqueue(context.Context, core.WebhookDelivery) error {
	return core.NewError(core.KindConfigurationMissing, core.StageEmit,
		errNoWebhookEnqueuer)
}

var errNoWebhookEnqueuer = webhookConfigError("orchestrator: no WebhookEnqueuer configured")

type webhookConfigError string

func (e webhookConfigError) Error() string { return string(e) }
