package upstream

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: i/o problem" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

func TestClassify_TypedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"classified error", NewError(KindRateLimited, "throttled", nil), KindRateLimited},
		{"wrapped classified error", fmt.Errorf("calling api: %w", NewError(KindServer, "boom", nil)), KindServer},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"net timeout", &fakeNetError{timeout: true}, KindTimeout},
		{"net non-timeout", &fakeNetError{}, KindNetwork},
		{"nil", nil, KindGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_Messages(t *testing.T) {
	tests := []struct {
		msg  string
		want Kind
	}{
		{"Rate limit exceeded, retry after 20s", KindRateLimited},
		{"HTTP 429 Too Many Requests", KindRateLimited},
		{"quota exceeded for project", KindRateLimited},
		{"request timed out", KindTimeout},
		{"connection refused", KindNetwork},
		{"lookup api.example.com: no such host", KindNetwork},
		{"502 Bad Gateway", KindServer},
		{"model overloaded, please retry", KindServer},
		{"invalid API key provided", KindCredentials},
		{"response blocked by safety filters", KindGenerationFailed},
		{"400 Bad Request: unknown field", KindClient},
		{"cannot unmarshal response body", KindInvalidResponse},
		{"something inexplicable happened", KindGenerationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := Classify(errors.New(tt.msg)); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.msg, got, tt.want)
			}
		})
	}
}

func TestKind_Retryable(t *testing.T) {
	retryable := []Kind{KindNetwork, KindTimeout, KindRateLimited, KindServer}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Errorf("expected %s to be retryable", k)
		}
	}
	terminal := []Kind{KindClient, KindGenerationFailed, KindInvalidResponse, KindCredentials}
	for _, k := range terminal {
		if k.Retryable() {
			t.Errorf("expected %s to be non-retryable", k)
		}
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{429, KindRateLimited},
		{401, KindCredentials},
		{403, KindCredentials},
		{408, KindTimeout},
		{500, KindServer},
		{503, KindServer},
		{400, KindClient},
		{422, KindClient},
	}
	for _, tt := range tests {
		e := StatusError(tt.status, "api error", nil)
		if e.Kind != tt.want {
			t.Errorf("StatusError(%d) kind = %s, want %s", tt.status, e.Kind, tt.want)
		}
		if e.Status != tt.status {
			t.Errorf("StatusError(%d) status = %d", tt.status, e.Status)
		}
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(KindServer, "wrapped", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause through Unwrap")
	}
}
