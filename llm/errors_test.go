package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"auth error", &AuthenticationError{}, false},
		{"access denied", &AccessDeniedError{}, false},
		{"not found", &NotFoundError{}, false},
		{"invalid request", &InvalidRequestError{}, false},
		{"context length", &ContextLengthError{}, false},
		{"content filter", &ContentFilterError{}, false},
		{"config error", &ConfigurationError{}, false},
		{"abort", &AbortError{}, false},
		{"rate limit", &RateLimitError{ProviderError: ProviderError{Retryable: true}}, true},
		{"server error", &ServerError{ProviderError: ProviderError{Retryable: true}}, true},
		{"network error", &NetworkError{}, true},
		{"timeout error", &RequestTimeoutError{}, true},
		{"context cancelled", context.Canceled, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"unknown error", errors.New("unknown"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("expected retryable=%v, got %v", tt.retryable, got)
			}
		})
	}
}

func TestSDKErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &NetworkError{SDKError: SDKError{Message: "dial failed", Cause: cause}}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the cause")
	}
	if err.Error() != "dial failed: root cause" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{SDKError: SDKError{Message: "boom"}, Provider: "openai", StatusCode: 500, Retryable: true}
	want := "[openai] boom (status=500, retryable=true)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}
