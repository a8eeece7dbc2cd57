// Package upstream defines the vendor-agnostic contract between the
// governor and the external AI services it calls: a closed error-kind
// taxonomy, a typed Error carrying it, and the single classification
// adapter that maps arbitrary upstream failures onto the taxonomy.
//
// No vendor-specific request or response parsing belongs here. Adapters
// (e.g. upstream/openai) translate their SDK errors into *Error; everything
// downstream branches only on Kind.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies an upstream failure. The set is closed: retry decisions
// and metrics labels branch on it exhaustively.
type Kind int

const (
	// KindNetwork — connection-level failure (refused, reset, DNS).
	KindNetwork Kind = iota
	// KindTimeout — the call exceeded a deadline.
	KindTimeout
	// KindRateLimited — the upstream itself signaled throttling (HTTP 429).
	KindRateLimited
	// KindServer — upstream internal error (5xx-equivalent).
	KindServer
	// KindClient — the request was rejected as invalid (4xx-equivalent).
	KindClient
	// KindGenerationFailed — the model refused or failed to produce output
	// (content policy, empty completion). Also the default for failures
	// that cannot be classified.
	KindGenerationFailed
	// KindInvalidResponse — the upstream answered with a payload we could
	// not parse.
	KindInvalidResponse
	// KindCredentials — missing or rejected API credentials.
	KindCredentials
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	case KindGenerationFailed:
		return "generation_failed"
	case KindInvalidResponse:
		return "invalid_response"
	case KindCredentials:
		return "credentials"
	default:
		return "unknown"
	}
}

// Retryable reports whether re-attempting a call that failed with this kind
// has a reasonable chance of succeeding.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind   Kind
	Status int // HTTP status when known, 0 otherwise
	msg    string
	cause  error
}

// NewError creates a classified error. cause may be nil.
func NewError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, msg: msg, cause: cause}
}

// StatusError creates a classified error from an HTTP status code.
func StatusError(status int, msg string, cause error) *Error {
	return &Error{Kind: kindForStatus(status), Status: status, msg: msg, cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.msg, e.cause)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.cause }

func kindForStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 401 || status == 403:
		return KindCredentials
	case status == 408:
		return KindTimeout
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindClient
	default:
		return KindGenerationFailed
	}
}

// Classify maps an arbitrary upstream failure onto a Kind. Typed errors are
// inspected first; free-text message matching is the last resort and happens
// only here.
func Classify(err error) Kind {
	if err == nil {
		return KindGenerationFailed
	}

	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the best-effort adapter from free-text upstream error
// messages to the closed Kind set. Keep all string inspection confined to
// this function.
func classifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "rate limit"),
		strings.Contains(m, "too many requests"),
		strings.Contains(m, "quota"),
		strings.Contains(m, "429"):
		return KindRateLimited
	case strings.Contains(m, "timeout"),
		strings.Contains(m, "timed out"),
		strings.Contains(m, "deadline exceeded"):
		return KindTimeout
	case strings.Contains(m, "connection refused"),
		strings.Contains(m, "connection reset"),
		strings.Contains(m, "no such host"),
		strings.Contains(m, "broken pipe"),
		strings.Contains(m, "network"):
		return KindNetwork
	case strings.Contains(m, "internal server error"),
		strings.Contains(m, "bad gateway"),
		strings.Contains(m, "service unavailable"),
		strings.Contains(m, "overloaded"),
		strings.Contains(m, "500"),
		strings.Contains(m, "502"),
		strings.Contains(m, "503"):
		return KindServer
	case strings.Contains(m, "api key"),
		strings.Contains(m, "unauthorized"),
		strings.Contains(m, "authentication"),
		strings.Contains(m, "credential"):
		return KindCredentials
	case strings.Contains(m, "safety"),
		strings.Contains(m, "content policy"),
		strings.Contains(m, "blocked"):
		return KindGenerationFailed
	case strings.Contains(m, "invalid request"),
		strings.Contains(m, "bad request"),
		strings.Contains(m, "400"):
		return KindClient
	case strings.Contains(m, "unmarshal"),
		strings.Contains(m, "parse"),
		strings.Contains(m, "malformed"),
		strings.Contains(m, "unexpected response"):
		return KindInvalidResponse
	default:
		return KindGenerationFailed
	}
}
