package services

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	withProvider := &Error{Kind: ErrQuotaExceeded, Provider: "openai", Message: "billing limit reached"}
	if got := withProvider.Error(); got != "openai: quota_exceeded: billing limit reached" {
		t.Errorf("expected provider-prefixed message, got %q", got)
	}

	bare := &Error{Kind: ErrInvalidInput, Message: "scene count must be positive"}
	if got := bare.Error(); got != "invalid_input: scene count must be positive" {
		t.Errorf("expected kind-prefixed message, got %q", got)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Kind: ErrProvider, Provider: "elevenlabs", Message: "request failed", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	classified := &Error{Kind: ErrContentPolicy, Provider: "openai", Message: "flagged"}
	if got := KindOf(classified); got != ErrContentPolicy {
		t.Errorf("expected content_policy_violation, got %s", got)
	}

	// Verify the kind survives wrapping.
	wrapped := fmt.Errorf("scene 2: %w", classified)
	if got := KindOf(wrapped); got != ErrContentPolicy {
		t.Errorf("expected content_policy_violation through the wrap, got %s", got)
	}

	if got := KindOf(errors.New("plain failure")); got != ErrProvider {
		t.Errorf("expected unclassified errors to default to provider_error, got %s", got)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{402, "payment required", ErrQuotaExceeded},
		{429, "slow down", ErrQuotaExceeded},
		{500, `{"detail":{"status":"quota_exceeded"}}`, ErrQuotaExceeded},
		{401, "invalid api key", ErrInvalidCredentials},
		{403, "forbidden", ErrInvalidCredentials},
		{400, "prompt was flagged by moderation", ErrContentPolicy},
		{400, "bad request", ErrProvider},
		{503, "upstream unavailable", ErrProvider},
	}

	for _, c := range cases {
		got := classifyHTTPStatus("cartesia", c.status, c.body)
		if got.Kind != c.want {
			t.Errorf("expected %s for status %d body %q, got %s", c.want, c.status, c.body, got.Kind)
		}
		if got.Provider != "cartesia" {
			t.Errorf("expected provider cartesia, got %s", got.Provider)
		}
	}
}

func TestTruncateString(t *testing.T) {
	short := "tiny body"
	if got := truncateString(short, maxRawLogLen); got != short {
		t.Errorf("expected short strings untouched, got %q", got)
	}

	long := strings.Repeat("x", maxRawLogLen+50)
	got := truncateString(long, maxRawLogLen)
	if len(got) != maxRawLogLen+len("...(truncated)") {
		t.Errorf("expected truncation at %d chars, got length %d", maxRawLogLen, len(got))
	}
	if !strings.HasSuffix(got, "...(truncated)") {
		t.Errorf("expected truncation marker, got %q", got[len(got)-30:])
	}
}
