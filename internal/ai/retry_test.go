package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.BackoffMultiplier)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.True(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 2, cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.OpenTimeout)
	assert.Equal(t, 3, cfg.MaxConcurrentCalls)
}

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "CLOSED", CircuitClosed.String())
	assert.Equal(t, "OPEN", CircuitOpen.String())
	assert.Equal(t, "HALF_OPEN", CircuitHalfOpen.String())
	assert.Equal(t, "UNKNOWN", CircuitState(99).String())
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, 30*time.Second)

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	// Two more failures stay below the threshold because the success
	// reset the count.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.GetState())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, 2, time.Hour)

	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.GetState())

	// After the open window the next Allow probes half-open.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	require.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, CircuitHalfOpen, cb.GetState())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())

	state, failures, successes := cb.GetMetrics()
	assert.Equal(t, CircuitClosed, state)
	assert.Equal(t, 0, failures)
	assert.Equal(t, 0, successes)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 2, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Allow())
	require.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{name: "nil", err: nil, retriable: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, retriable: true},
		{name: "rate limited", err: errors.New("429 too many requests"), retriable: true},
		{name: "rate limit text", err: errors.New("rate limit exceeded"), retriable: true},
		{name: "internal server error", err: errors.New("500 internal server error"), retriable: true},
		{name: "bad gateway", err: errors.New("502 bad gateway"), retriable: true},
		{name: "service unavailable", err: errors.New("service unavailable"), retriable: true},
		{name: "gateway timeout", err: errors.New("504 gateway timeout"), retriable: true},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), retriable: true},
		{name: "connection reset", err: errors.New("read: connection reset by peer"), retriable: true},
		{name: "generic timeout", err: errors.New("request timeout"), retriable: true},
		{name: "network error", err: errors.New("network is unreachable"), retriable: true},
		{name: "bad request", err: errors.New("400 bad request"), retriable: false},
		{name: "unauthorized", err: errors.New("401 unauthorized"), retriable: false},
		{name: "forbidden", err: errors.New("403 forbidden"), retriable: false},
		{name: "not found", err: errors.New("404 not found"), retriable: false},
		{name: "unknown error", err: errors.New("something odd happened"), retriable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, isRetriableError(tt.err))
		})
	}
}

// fastRetryClient builds a client with millisecond backoffs and no
// API connection, for exercising the retry loop directly.
func fastRetryClient(breaker *CircuitBreaker) *Client {
	return &Client{
		retry: RetryConfig{
			MaxRetries:        3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
			Timeout:           time.Second,
		},
		breaker: breaker,
	}
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	c := fastRetryClient(nil)

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test call", func(ctx context.Context) error {
		calls++
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			t.Error("attempt context should carry the per-request timeout")
		}
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_NonRetriableFailsFast(t *testing.T) {
	c := fastRetryClient(nil)

	calls := 0
	wantErr := errors.New("401 unauthorized")
	err := c.retryWithBackoff(context.Background(), "test call", func(ctx context.Context) error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_Exhaustion(t *testing.T) {
	c := fastRetryClient(nil)

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test call", func(ctx context.Context) error {
		calls++
		return errors.New("connection reset by peer")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "test call failed after 4 attempts")
	assert.Equal(t, 4, calls)
}

func TestRetryWithBackoff_CircuitOpenFailsFast(t *testing.T) {
	breaker := NewCircuitBreaker(1, 1, time.Hour)
	breaker.RecordFailure()
	require.Equal(t, CircuitOpen, breaker.GetState())

	c := fastRetryClient(breaker)

	calls := 0
	err := c.retryWithBackoff(context.Background(), "test call", func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	c := fastRetryClient(nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := c.retryWithBackoff(ctx, "test call", func(attemptCtx context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
	assert.Equal(t, 1, calls)
}
