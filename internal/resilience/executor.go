// Package resilience applies one timeout, classification and retry policy to every outbound call.
package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
)

// Policy bounds a single call including its retries.
type Policy struct {
	Timeout      time.Duration
	MaxRetries   int
	FirstBackoff time.Duration
	MaxBackoff   time.Duration
}

// PolicyFromConfig maps the retry configuration onto a Policy.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		FirstBackoff: cfg.FirstAttemptDuration,
		MaxBackoff:   cfg.LastAttemptDuration,
	}
}

// RequestFunc builds one attempt's request. It is called again for every retry
// so bodies and signed headers are fresh.
type RequestFunc func(ctx context.Context) (*http.Request, error)

// Result separates "the upstream had nothing to say" from a decoded value.
type Result[T any] struct {
	Value   T
	Present bool
}

// Executor runs requests against one upstream service.
type Executor struct {
	service    string
	httpClient *http.Client
	policy     Policy
	log        *zap.Logger
}

// NewExecutor creates an executor for the named upstream.
func NewExecutor(service string, httpClient *http.Client, policy Policy, logger *zap.Logger) *Executor {
	return &Executor{
		service:    service,
		httpClient: httpClient,
		policy:     policy,
		log:        logger.Named("resilience").With(zap.String("service", service)),
	}
}

// Execute sends the request built by newRequest and decodes a JSON body into T.
//
// 5xx answers fail with ErrInfrastructure, 4xx with ErrNotFound. Only 500 is
// retried, at most MaxRetries times with exponential backoff. The timeout covers
// every attempt and wait. An empty 2xx body yields a Result with Present false.
// target identifies the call in errors and logs.
func Execute[T any](ctx context.Context, e *Executor, target string, newRequest RequestFunc) (Result[T], error) {
	callCtx, cancel := context.WithTimeout(ctx, e.policy.Timeout)
	defer cancel()

	attempt := 0
	operation := func() (Result[T], error) {
		attempt++
		res, err := executeOnce[T](callCtx, e, target, newRequest)
		if err == nil {
			return res, nil
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Retryable() {
			return res, err
		}
		return res, backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		e.log.Info("unable to reach upstream, retrying",
			zap.String("target", target),
			zap.Int("retry_attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	res, err := backoff.RetryNotifyWithData[Result[T]](operation, e.backoff(callCtx), notify)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			err = &TimeoutError{Service: e.service, Target: target, Timeout: e.policy.Timeout}
		}
		e.log.Error("call to upstream failed",
			zap.String("target", target),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return Result[T]{}, err
	}
	return res, nil
}

func (e *Executor) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.policy.FirstBackoff
	b.MaxInterval = e.policy.MaxBackoff
	b.Multiplier = 2
	// no jitter: waits stay within [FirstBackoff, MaxBackoff]
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	maxRetries := e.policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)
}

func executeOnce[T any](ctx context.Context, e *Executor, target string, newRequest RequestFunc) (Result[T], error) {
	var res Result[T]

	req, err := newRequest(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: build request: %w", e.service, err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return res, fmt.Errorf("%s: request failed: %w", e.service, err)
	}
	defer resp.Body.Close()

	if err := classify(e.service, target, resp.StatusCode); err != nil {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return res, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return res, fmt.Errorf("%s: read body: %w", e.service, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return res, nil
	}

	if err := json.Unmarshal(body, &res.Value); err != nil {
		return res, fmt.Errorf("%s: decode response: %w", e.service, err)
	}
	res.Present = true
	return res, nil
}
