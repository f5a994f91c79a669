package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for classification outcomes.
// Go uses sentinel errors (predefined error values) instead of exception types.
// Callers check with errors.Is(err, ErrSchemaViolation).
var (
	// ErrNetwork covers transport and API failures of the external call.
	ErrNetwork = errors.New("llm: network error")

	// ErrClassificationFailed means the service answered without usable content.
	ErrClassificationFailed = errors.New("llm: classification failed")

	// ErrSchemaViolation means the answer did not match the required schema.
	ErrSchemaViolation = errors.New("llm: response violates schema")

	// ErrInvalidImage rejects unusable input before any external call is made.
	ErrInvalidImage = errors.New("llm: invalid image")
)

// ErrorKind returns a short, stable label for the ledger ("network",
// "classification_failed", "schema_violation", "invalid_image", "canceled"
// or "other").
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	case errors.Is(err, ErrClassificationFailed):
		return "classification_failed"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrInvalidImage):
		return "invalid_image"
	default:
		return "other"
	}
}

// networkError wraps a provider call failure. Go 1.20+ allows several %w verbs,
// so both the sentinel and the SDK error stay reachable through errors.Is/As.
func networkError(provider string, err error) error {
	return fmt.Errorf("%w: %s API call: %w", ErrNetwork, provider, err)
}

func failed(provider, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrClassificationFailed, provider, reason)
}

func violation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaViolation, fmt.Sprintf(format, args...))
}
