package modelclient

import (
	"errors"
	"testing"
)

func TestClassifyVendorError(t *testing.T) {
	cases := []struct {
		msg  string
		want ErrorKind
	}{
		{"401 unauthorized", ErrAuthExpired},
		{"invalid api key", ErrAuthExpired},
		{"429 too many requests", ErrRateLimited},
		{"400 invalid request: missing field", ErrInvalidRequest},
		{"502 bad gateway", ErrTransientNetwork},
		{"context deadline exceeded", ErrTransientNetwork},
		{"something unexpected happened", ErrVendor},
	}
	for _, c := range cases {
		got := classifyVendorError(errors.New(c.msg))
		if got != c.want {
			t.Errorf("classifyVendorError(%q) = %v, want %v", c.msg, got, c.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	if !isRetryable(ErrTransientNetwork) {
		t.Error("TransientNetwork should be retryable")
	}
	if !isRetryable(ErrRateLimited) {
		t.Error("RateLimited should be retryable")
	}
	if isRetryable(ErrInvalidRequest) {
		t.Error("InvalidRequest should not be retryable")
	}
	if isRetryable(ErrAuthExpired) {
		t.Error("AuthExpired is handled via refresh, not blind retry")
	}
}
