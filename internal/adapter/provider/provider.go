package provider

import (
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies a provider call failure for health accounting.
type FailureKind string

const (
	FailTimeout     FailureKind = "timeout"
	FailAuth        FailureKind = "auth"
	FailRateLimit   FailureKind = "rate_limit"
	FailServerError FailureKind = "server_error"
	FailBadResponse FailureKind = "bad_response"
)

// ErrProvidersUnavailable is returned by the router when every configured
// provider is unhealthy or failing.
var ErrProvidersUnavailable = errors.New("all providers unavailable")

// CallError is a classified provider failure.
type CallError struct {
	Provider string
	Kind     FailureKind
	// RetryAfter is set for rate_limit failures when the provider supplied
	// a retry hint.
	RetryAfter time.Duration
	Err        error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(status int) FailureKind {
	switch {
	case status == 401 || status == 403:
		return FailAuth
	case status == 429:
		return FailRateLimit
	case status >= 500:
		return FailServerError
	default:
		return FailBadResponse
	}
}
