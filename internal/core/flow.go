package core

import (
	"context"
	"sync"
	"time"
)

// FlowContext is the per-request object the orchestrator owns exclusively
// for the lifetime of one flow. It is created on ingress and discarded
// after the final response is emitted or the webhook is handed off.
type FlowContext struct {
	CorrelationID   string
	MessageID       string
	TenantID        string
	Coordinate      PolicyCoordinate
	Route           FlowRoute
	ResponseMode    ResponseMode
	StartedAt       time.Time
	Attempts        int
	LastStageStatus Stage

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	events []TransitionRecord
}

// TransitionRecord is one (stage, status, timestamp) audit entry recorded
// as the flow advances through the state machine.
type TransitionRecord struct {
	CorrelationID string
	Stage         Stage
	Status        string
	Timestamp     time.Time
	Metadata      map[string]string
}

// NewFlowContext creates a flow bound to a deadline derived from parent,
// defaulting to 60s per the flow-level deadline in the concurrency model.
func NewFlowContext(parent context.Context, correlationID, messageID, tenantID string, coord PolicyCoordinate, route FlowRoute, mode ResponseMode, deadline time.Duration) *FlowContext {
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(parent, deadline)
	return &FlowContext{
		CorrelationID: correlationID,
		MessageID:     messageID,
		TenantID:      tenantID,
		Coordinate:    coord,
		Route:         route,
		ResponseMode:  mode,
		StartedAt:     time.Now(),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Context returns the flow's cancellation-aware context, to be threaded
// through every downstream I/O call (fraud engine, dispatcher, webhook).
func (f *FlowContext) Context() context.Context { return f.ctx }

// Cancel propagates cancellation to every child operation holding this
// flow's context. Safe to call multiple times.
func (f *FlowContext) Cancel() { f.cancel() }

// Release tears down the flow's context, to be called once terminal state
// is reached so no goroutine keeps the timer alive.
func (f *FlowContext) Release() { f.cancel() }

// Record appends a transition to the in-memory audit trail and advances
// LastStageStatus.
func (f *FlowContext) Record(stage Stage, status string, metadata map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastStageStatus = stage
	f.events = append(f.events, TransitionRecord{
		CorrelationID: f.CorrelationID,
		Stage:         stage,
		Status:        status,
		Timestamp:     time.Now(),
		Metadata:      metadata,
	})
}

// Transitions returns a copy of the recorded audit trail.
func (f *FlowContext) Transitions() []TransitionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]TransitionRecord, len(f.events))
	copy(out, f.events)
	return out
}
