package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_TripsOnFailureRatio(t *testing.T) {
	cfg := &Config{
		Name:         "test",
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		MinimumCalls: 3,
		ReadyToTrip: func(counts Counts) bool {
			return counts.Requests >= 3 && counts.FailureRatio() > 0.5
		},
	}
	cb := New(cfg)
	assert.Equal(t, StateClosed, cb.State())

	failingCall := func() (interface{}, error) { return nil, errors.New("downstream unavailable") }

	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(failingCall)
	}

	assert.Equal(t, StateOpen, cb.State())

	_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cfg := &Config{
		Name:         "test-recover",
		MaxRequests:  2,
		Interval:     time.Minute,
		Timeout:      10 * time.Millisecond,
		MinimumCalls: 1,
		ReadyToTrip:  func(counts Counts) bool { return counts.TotalFailures >= 1 },
	}
	cb := New(cfg)

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (interface{}, error) { return "ok", nil })
		require.NoError(t, err)
	}

	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	cfg := &Config{
		Name:         "test-reopen",
		MaxRequests:  2,
		Interval:     time.Minute,
		Timeout:      10 * time.Millisecond,
		MinimumCalls: 1,
		ReadyToTrip:  func(counts Counts) bool { return counts.TotalFailures >= 1 },
	}
	cb := New(cfg)

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("boom") })
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	_, _ = cb.Execute(func() (interface{}, error) { return nil, errors.New("still failing") })
	assert.Equal(t, StateOpen, cb.State())
}

func TestCounts_FailureRatio(t *testing.T) {
	var c Counts
	assert.Equal(t, 0.0, c.FailureRatio())

	c.OnSuccess(false)
	c.OnFailure()
	c.OnFailure()
	assert.InDelta(t, 2.0/3.0, c.FailureRatio(), 0.0001)
	assert.Equal(t, uint32(2), c.ConsecutiveFailures)

	c.OnSuccess(false)
	assert.Equal(t, uint32(0), c.ConsecutiveFailures)
	assert.Equal(t, uint32(2), c.ConsecutiveSuccesses)
}

func TestManager_GetOrCreateReusesBreaker(t *testing.T) {
	m := NewManager(nil)
	cb1 := m.Get("clearing-system")
	cb2 := m.Get("clearing-system")
	assert.Same(t, cb1, cb2)
	assert.Contains(t, m.List(), "clearing-system")
}

func TestSchemeCircuitBreakers_HealthStatus(t *testing.T) {
	breakers := NewSchemeCircuitBreakers()
	status, details := breakers.HealthStatus()
	assert.Equal(t, "HEALTHY", status)
	assert.Contains(t, details, "clearing-system")
	assert.Contains(t, details, "fraud-engine")
}
