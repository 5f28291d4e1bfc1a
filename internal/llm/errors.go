package llm

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a model call failed. The retry controller
// keys its backoff policy on this, and the fallback SYSTEM log message
// is chosen per kind.
type FailureKind int

const (
	// RateLimited: HTTP 429 or quota-exhausted signals.
	RateLimited FailureKind = iota
	// Unauthorized: 401/403 or an invalid credential.
	Unauthorized
	// Unreachable: transport-level failure (DNS, refused, timeout).
	Unreachable
	// MalformedResponse: the reply arrived but was not parseable as the
	// expected JSON structure.
	MalformedResponse
	// ConfigurationMissing: no credential configured at all. Short-circuits
	// before any attempt is made.
	ConfigurationMissing
)

func (k FailureKind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Unauthorized:
		return "unauthorized"
	case Unreachable:
		return "unreachable"
	case MalformedResponse:
		return "malformed_response"
	case ConfigurationMissing:
		return "configuration_missing"
	}
	return "unknown"
}

// CallError is a classified model-call failure.
type CallError struct {
	Kind FailureKind
	Err  error
}

func (e *CallError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// callErr wraps err with a failure kind.
func callErr(kind FailureKind, err error) *CallError {
	return &CallError{Kind: kind, Err: err}
}

// KindOf extracts the failure kind from err, defaulting to Unreachable
// for unclassified failures so they stay retryable.
func KindOf(err error) FailureKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Unreachable
}
