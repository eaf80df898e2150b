package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type payload struct {
	Value string `json:"value"`
}

func testPolicy(maxRetries int) Policy {
	return Policy{
		Timeout:      2 * time.Second,
		MaxRetries:   maxRetries,
		FirstBackoff: time.Millisecond,
		MaxBackoff:   5 * time.Millisecond,
	}
}

// failingServer answers failures times with status, then succeeds.
func failingServer(t *testing.T, failures int32, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failures {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(payload{Value: "ok"})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func getRequest(url string) RequestFunc {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestExecute_RetriesInternalServerErrorThenSucceeds(t *testing.T) {
	server, calls := failingServer(t, 3, http.StatusInternalServerError)
	exec := NewExecutor("twitter", server.Client(), testPolicy(3), zap.NewNop())

	res, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	require.NoError(t, err)
	assert.True(t, res.Present)
	assert.Equal(t, "ok", res.Value.Value)
	assert.Equal(t, int32(4), atomic.LoadInt32(calls))
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	server, calls := failingServer(t, 3, http.StatusInternalServerError)
	exec := NewExecutor("twitter", server.Client(), testPolicy(1), zap.NewNop())

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInfrastructure)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestExecute_NotFoundIsNotRetried(t *testing.T) {
	server, calls := failingServer(t, 10, http.StatusNotFound)
	exec := NewExecutor("twitter", server.Client(), testPolicy(3), zap.NewNop())

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestExecute_OtherServerErrorsAreNotRetried(t *testing.T) {
	server, calls := failingServer(t, 10, http.StatusServiceUnavailable)
	exec := NewExecutor("translate", server.Client(), testPolicy(3), zap.NewNop())

	_, err := Execute[payload](context.Background(), exec, "hello", getRequest(server.URL))

	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	policy := testPolicy(3)
	policy.Timeout = 50 * time.Millisecond
	exec := NewExecutor("twitter", server.Client(), policy, zap.NewNop())

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Contains(t, err.Error(), "44196397")
}

func TestExecute_TimeoutCoversBackoff(t *testing.T) {
	server, calls := failingServer(t, 100, http.StatusInternalServerError)
	policy := Policy{
		Timeout:      100 * time.Millisecond,
		MaxRetries:   10,
		FirstBackoff: time.Second,
		MaxBackoff:   time.Second,
	}
	exec := NewExecutor("twitter", server.Client(), policy, zap.NewNop())

	start := time.Now()
	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestExecute_EmptyBodyIsNoResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	exec := NewExecutor("twitter", server.Client(), testPolicy(1), zap.NewNop())

	res, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	require.NoError(t, err)
	assert.False(t, res.Present)
}

func TestExecute_InvalidJSONIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("invalid json"))
	}))
	t.Cleanup(server.Close)
	exec := NewExecutor("twitter", server.Client(), testPolicy(3), zap.NewNop())

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecute_RequestBuildErrorIsNotRetried(t *testing.T) {
	exec := NewExecutor("twitter", http.DefaultClient, testPolicy(3), zap.NewNop())
	var builds int

	_, err := Execute[payload](context.Background(), exec, "44196397", func(ctx context.Context) (*http.Request, error) {
		builds++
		return nil, errors.New("bad header")
	})

	assert.ErrorContains(t, err, "bad header")
	assert.Equal(t, 1, builds)
}

func TestExecute_LogsTerminalFailureWithTarget(t *testing.T) {
	server, _ := failingServer(t, 10, http.StatusBadRequest)
	core, logs := observer.New(zapcore.InfoLevel)
	exec := NewExecutor("twitter", server.Client(), testPolicy(1), zap.New(core))

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))
	require.Error(t, err)

	entries := logs.FilterMessage("call to upstream failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "44196397", entries[0].ContextMap()["target"])
	assert.Equal(t, "twitter", entries[0].ContextMap()["service"])
}

func TestExecute_LogsRetries(t *testing.T) {
	server, _ := failingServer(t, 2, http.StatusInternalServerError)
	core, logs := observer.New(zapcore.InfoLevel)
	exec := NewExecutor("twitter", server.Client(), testPolicy(3), zap.New(core))

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))
	require.NoError(t, err)

	assert.Equal(t, 2, logs.FilterMessage("unable to reach upstream, retrying").Len())
}

func TestExecute_BackoffStaysWithinPolicy(t *testing.T) {
	server, calls := failingServer(t, 100, http.StatusInternalServerError)
	core, logs := observer.New(zapcore.InfoLevel)
	policy := Policy{
		Timeout:      5 * time.Second,
		MaxRetries:   8,
		FirstBackoff: 2 * time.Millisecond,
		MaxBackoff:   8 * time.Millisecond,
	}
	exec := NewExecutor("twitter", server.Client(), policy, zap.New(core))

	_, err := Execute[payload](context.Background(), exec, "44196397", getRequest(server.URL))
	require.ErrorIs(t, err, ErrInfrastructure)
	assert.Equal(t, int32(9), atomic.LoadInt32(calls))

	entries := logs.FilterMessage("unable to reach upstream, retrying").All()
	require.Len(t, entries, 8)

	var waits []time.Duration
	for _, entry := range entries {
		wait, ok := entry.ContextMap()["backoff"].(time.Duration)
		require.True(t, ok)
		assert.GreaterOrEqual(t, wait, policy.FirstBackoff)
		assert.LessOrEqual(t, wait, policy.MaxBackoff)
		waits = append(waits, wait)
	}
	assert.Equal(t, policy.FirstBackoff, waits[0])
	assert.Equal(t, policy.MaxBackoff, waits[len(waits)-1])
}

func TestStatusError_Classification(t *testing.T) {
	assert.Nil(t, classify("twitter", "x", http.StatusOK))
	assert.Nil(t, classify("twitter", "x", http.StatusNoContent))
	assert.ErrorIs(t, classify("twitter", "x", http.StatusBadGateway), ErrInfrastructure)
	assert.ErrorIs(t, classify("twitter", "x", http.StatusTooManyRequests), ErrNotFound)

	err := &StatusError{Service: "translate", Target: "hello", StatusCode: 500}
	assert.Equal(t, "error 500 on translate api for hello", err.Error())
	assert.True(t, err.Retryable())
	assert.False(t, (&StatusError{StatusCode: 502}).Retryable())
}
