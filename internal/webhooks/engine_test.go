package webhooks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/database"
)

type fakeDeliveryStore struct {
	mu   sync.Mutex
	rows []*database.WebhookDeliveryRow
}

func (s *fakeDeliveryStore) PutWebhookDelivery(ctx context.Context, row *database.WebhookDeliveryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *fakeDeliveryStore) lastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rows) == 0 {
		return ""
	}
	return s.rows[len(s.rows)-1].Status
}

func (s *fakeDeliveryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func waitForStatus(t *testing.T, store *fakeDeliveryStore, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if store.lastStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for delivery status %q, last was %q", want, store.lastStatus())
}

func TestEngine_Enqueue_DeliversSuccessfully(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "corr-1", r.Header.Get("X-Correlation-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeDeliveryStore{}
	engine := NewEngine(store, 2)
	defer engine.Shutdown()

	err := engine.Enqueue(context.Background(), core.WebhookDelivery{
		CorrelationID: "corr-1",
		TargetURL:     srv.URL,
		TenantID:      "tenant-a",
		Payload:       core.NewMessage(),
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
	})
	require.NoError(t, err)

	waitForStatus(t, store, string(core.WebhookDelivered))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestEngine_Enqueue_GivesUpAfterMaxAttemptsOnServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := &fakeDeliveryStore{}
	engine := NewEngine(store, 1)
	defer engine.Shutdown()

	err := engine.Enqueue(context.Background(), core.WebhookDelivery{
		CorrelationID: "corr-2",
		TargetURL:     srv.URL,
		TenantID:      "tenant-a",
		Payload:       core.NewMessage(),
		MaxAttempts:   3,
		BaseDelay:     time.Millisecond,
	})
	require.NoError(t, err)

	waitForStatus(t, store, string(core.WebhookGivenUp))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestEngine_Enqueue_TerminalStatusDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	store := &fakeDeliveryStore{}
	engine := NewEngine(store, 1)
	defer engine.Shutdown()

	err := engine.Enqueue(context.Background(), core.WebhookDelivery{
		CorrelationID: "corr-3",
		TargetURL:     srv.URL,
		TenantID:      "tenant-a",
		Payload:       core.NewMessage(),
		MaxAttempts:   5,
		BaseDelay:     time.Millisecond,
	})
	require.NoError(t, err)

	waitForStatus(t, store, string(core.WebhookGivenUp))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "a 400 is terminal and must not be retried")
}

func TestEngine_Enqueue_NilStoreIsSafe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	engine := NewEngine(nil, 1)
	defer engine.Shutdown()

	err := engine.Enqueue(context.Background(), core.WebhookDelivery{
		CorrelationID: "corr-4",
		TargetURL:     srv.URL,
		Payload:       core.NewMessage(),
		MaxAttempts:   1,
		BaseDelay:     time.Millisecond,
	})
	assert.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
}
