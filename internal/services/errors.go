package services

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Provider error classification
// Every adapter classifies raw failures exactly once, at its own boundary.
// Callers branch on Kind; they never match message text.
// ---------------------------------------------------------------------------

// ErrorKind is the category a provider or infrastructure failure falls into.
type ErrorKind string

const (
	ErrInvalidInput       ErrorKind = "invalid_input"
	ErrContentPolicy      ErrorKind = "content_policy_violation"
	ErrQuotaExceeded      ErrorKind = "quota_exceeded"
	ErrInvalidCredentials ErrorKind = "invalid_credentials"
	ErrProvider           ErrorKind = "provider_error"
	ErrStore              ErrorKind = "store_error"
	ErrCompositor         ErrorKind = "compositor_error"
)

// Error is a classified failure. Message keeps whatever detail the provider
// gave; for compositor failures that is the full tool output.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classified kind from an error chain. Anything that was
// never classified counts as a generic provider failure.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return ErrProvider
}

// classifyHTTPStatus maps a raw provider HTTP response onto an ErrorKind.
// Shared by the adapters that speak plain REST (ElevenLabs, Cartesia).
func classifyHTTPStatus(provider string, status int, body string) *Error {
	kind := ErrProvider
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "quota_exceeded") || status == 402 || status == 429:
		kind = ErrQuotaExceeded
	case status == 401 || status == 403:
		kind = ErrInvalidCredentials
	case status == 400 && (strings.Contains(lower, "content_policy") || strings.Contains(lower, "flagged") || strings.Contains(lower, "moderation")):
		kind = ErrContentPolicy
	}
	return &Error{
		Kind:     kind,
		Provider: provider,
		Message:  fmt.Sprintf("status %d: %s", status, truncateString(body, maxRawLogLen)),
	}
}

const maxRawLogLen = 2000

// truncateString shortens raw provider payloads for logs and messages.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
