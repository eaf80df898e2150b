package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInfrastructure marks a 5xx answer from an upstream.
	ErrInfrastructure = errors.New("infrastructure error")
	// ErrNotFound marks a 4xx answer from an upstream. It is never retried.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks a call that ran out of its deadline, retries included.
	ErrTimeout = errors.New("timeout")
)

// StatusError is a classified non-2xx answer.
type StatusError struct {
	Service    string
	Target     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("error %d on %s api for %s", e.StatusCode, e.Service, e.Target)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode >= http.StatusInternalServerError {
		return ErrInfrastructure
	}
	return ErrNotFound
}

// Retryable reports whether the upstream answered with an internal server error.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusInternalServerError
}

// TimeoutError is returned when the call deadline expires.
type TimeoutError struct {
	Service string
	Target  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout of %s has been exceeded when calling the %s api for %s", e.Timeout, e.Service, e.Target)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// classify maps a status code to an error; nil means the body should be decoded.
func classify(service, target string, statusCode int) error {
	if statusCode >= 400 && statusCode < 600 {
		return &StatusError{Service: service, Target: target, StatusCode: statusCode}
	}
	return nil
}
