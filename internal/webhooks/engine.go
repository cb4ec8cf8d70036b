// Package webhooks is the Webhook Delivery Engine: it owns a
// core.WebhookDelivery from the moment the orchestrator enqueues it until
// it reaches DELIVERED or GIVEN_UP, following the same worker-pool-over-a-
// buffered-channel idiom the teacher's subscriber-fanout Dispatcher used,
// repurposed here for single-target, per-flow deliveries instead of
// one-event-to-many-subscribers fanout.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/database"
)

// DeliveryStore persists delivery rows and appends to the dead-letter log.
// *database.SupabaseClient satisfies this.
type DeliveryStore interface {
	PutWebhookDelivery(ctx context.Context, row *database.WebhookDeliveryRow) error
}

// Engine implements orchestrator.WebhookEnqueuer: Enqueue only admits a
// delivery onto the internal queue and returns, never blocking on the HTTP
// round trip itself.
type Engine struct {
	httpClient *http.Client
	queue      chan *core.WebhookDelivery
	store      DeliveryStore
	logger     *log.Logger
	wg         sync.WaitGroup
}

// NewEngine starts workers workers pulling off an internally buffered
// queue. store may be nil, in which case delivery state is tracked only
// in memory for the lifetime of the attempt (no durable history).
func NewEngine(store DeliveryStore, workers int) *Engine {
	if workers <= 0 {
		workers = 4
	}
	e := &Engine{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		queue:      make(chan *core.WebhookDelivery, 1000),
		store:      store,
		logger:     log.New(os.Stdout, "[WEBHOOKS] ", log.LstdFlags),
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	return e
}

// Enqueue admits delivery onto the queue. A full queue is a shed, not a
// block: the caller already committed to ASYNC/WEBHOOK responseMode, and a
// dropped admission is recorded as GIVEN_UP rather than stalling the flow
// that is trying to hand it off.
func (e *Engine) Enqueue(ctx context.Context, delivery core.WebhookDelivery) error {
	d := delivery
	d.Status = core.WebhookPending
	e.persist(ctx, &d)

	select {
	case e.queue <- &d:
		return nil
	default:
		d.Status = core.WebhookGivenUp
		e.persist(ctx, &d)
		return fmt.Errorf("webhooks: delivery queue full, correlationId=%s given up", d.CorrelationID)
	}
}

func (e *Engine) worker(id int) {
	defer e.wg.Done()
	for d := range e.queue {
		e.deliver(d)
	}
}

// deliver runs the PENDING -> DELIVERING -> {DELIVERED | RETRYING -> ... |
// GIVEN_UP} state machine for one delivery, retrying on a fixed BaseDelay
// ladder rather than exponential backoff: webhooks fan out to arbitrary
// client endpoints, and a flat cadence is easier for an integrator to
// reason about than a growing one.
func (e *Engine) deliver(d *core.WebhookDelivery) {
	for {
		d.Attempt++
		d.Status = core.WebhookDelivering
		e.persist(context.Background(), d)

		result, retryable, err := e.attempt(d)
		d.Result = &result

		if err == nil {
			d.Status = core.WebhookDelivered
			e.persist(context.Background(), d)
			return
		}

		if !retryable || d.Attempt >= d.MaxAttempts {
			d.Status = core.WebhookGivenUp
			e.persist(context.Background(), d)
			e.logger.Printf("delivery given up correlationId=%s attempt=%d: %v", d.CorrelationID, d.Attempt, err)
			return
		}

		d.Status = core.WebhookRetrying
		e.persist(context.Background(), d)
		time.Sleep(d.BaseDelay)
	}
}

// attempt performs one HTTP delivery attempt. A 2xx response is success;
// 4xx other than 429 is a terminal classification (the endpoint will
// never accept this payload); everything else — network error, 5xx, 429 —
// is retryable.
func (e *Engine) attempt(d *core.WebhookDelivery) (core.WebhookDeliveryResult, bool, error) {
	body, err := json.Marshal(d.Payload.WithoutMetadata())
	if err != nil {
		return core.WebhookDeliveryResult{Error: err.Error(), AttemptedAt: time.Now().UTC()}, false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.TargetURL, bytes.NewReader(body))
	if err != nil {
		return core.WebhookDeliveryResult{Error: err.Error(), AttemptedAt: time.Now().UTC()}, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", d.CorrelationID)
	req.Header.Set("X-Tenant-ID", d.TenantID)
	req.Header.Set("X-Message-Type", string(d.MessageType))
	req.Header.Set("X-Timestamp", time.Now().UTC().Format(time.RFC3339))
	for k, v := range d.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	attempted := time.Now().UTC()
	if err != nil {
		return core.WebhookDeliveryResult{Error: err.Error(), AttemptedAt: attempted}, true, err
	}
	defer resp.Body.Close()

	result := core.WebhookDeliveryResult{StatusCode: resp.StatusCode, AttemptedAt: attempted}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return result, false, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		result.Error = fmt.Sprintf("retryable status %d", resp.StatusCode)
		return result, true, fmt.Errorf("%s", result.Error)
	}
	result.Error = fmt.Sprintf("terminal status %d", resp.StatusCode)
	return result, false, fmt.Errorf("%s", result.Error)
}

func (e *Engine) persist(ctx context.Context, d *core.WebhookDelivery) {
	if e.store == nil {
		return
	}
	row := &database.WebhookDeliveryRow{
		CorrelationID: d.CorrelationID,
		TenantID:      d.TenantID,
		TargetURL:     d.TargetURL,
		MessageType:   string(d.MessageType),
		Status:        string(d.Status),
		Attempt:       d.Attempt,
		MaxAttempts:   d.MaxAttempts,
		BaseDelayMs:   int(d.BaseDelay / time.Millisecond),
	}
	if payload, err := json.Marshal(d.Payload); err == nil {
		row.Payload = payload
	}
	if d.Result != nil {
		row.ResultCode = d.Result.StatusCode
		row.ResultError = d.Result.Error
	}
	if err := e.store.PutWebhookDelivery(ctx, row); err != nil {
		e.logger.Printf("persist delivery failed correlationId=%s: %v", d.CorrelationID, err)
	}
}

// Shutdown drains in-flight deliveries and stops accepting new ones.
func (e *Engine) Shutdown() {
	close(e.queue)
	e.wg.Wait()
}
