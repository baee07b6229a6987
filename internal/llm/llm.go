// Package llm defines the pluggable analysis backend the analyzer
// drives: a single Backend interface with Local-HTTP, Remote-HTTP
// authenticated, and Mock implementations behind it.
package llm

import (
	"context"
	"errors"
	"time"

	"observer/internal/events"
)

// CallTimeout bounds every backend call, matching the original
// Ollama/OpenAI clients' 60 second HTTP client timeout.
const CallTimeout = 60 * time.Second

// ErrorKind classifies why a backend call failed, so the analyzer's
// retry queue can decide whether retrying is worthwhile.
type ErrorKind int

const (
	ErrorKindTimeout ErrorKind = iota
	ErrorKindTransport
	ErrorKindAuthFailure
	ErrorKindParseFailure
	ErrorKindBackendRefusal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindTransport:
		return "transport"
	case ErrorKindAuthFailure:
		return "auth_failure"
	case ErrorKindParseFailure:
		return "parse_failure"
	case ErrorKindBackendRefusal:
		return "backend_refusal"
	default:
		return "unknown"
	}
}

// BackendError wraps a backend failure with its ErrorKind so callers
// can classify the error without string matching.
type BackendError struct {
	Kind ErrorKind
	Err  error
}

func (e *BackendError) Error() string {
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// AsBackendError extracts the ErrorKind from err if it (or something
// it wraps) is a *BackendError.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// Backend is the single seam every concrete LLM integration
// implements: submit a trigger context, get back a structured
// insight or a classified error.
type Backend interface {
	Analyze(ctx context.Context, trigger events.TriggerContext) (events.AIInsight, error)
}
