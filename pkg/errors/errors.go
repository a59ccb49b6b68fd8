package errors

import (
	"errors"
	"fmt"
)

// Error codes
const (
	CodeNotFound  = "NOT_FOUND"
	CodeTransient = "TRANSIENT_ERROR"
	CodeQuota     = "QUOTA_EXCEEDED"
	CodeMalformed = "MALFORMED_RESPONSE"
	CodeStore     = "STORE_ERROR"
	CodeConfig    = "CONFIG_ERROR"
)

type TrackerError struct {
	Message string
	Code    string
	Context map[string]any
	Cause   error
}

func (e *TrackerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TrackerError) Unwrap() error {
	return e.Cause
}

func NewTrackerError(message, code string, context map[string]any) *TrackerError {
	return &TrackerError{
		Message: message,
		Code:    code,
		Context: context,
	}
}

func (e *TrackerError) WithCause(cause error) *TrackerError {
	e.Cause = cause
	return e
}

// NotFoundError marks an entity that no longer exists upstream. Terminal for
// the current operation; never retried beyond the standard attempt budget.
type NotFoundError struct {
	*TrackerError
	Entity string
	ID     string
}

func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		TrackerError: &TrackerError{
			Message: fmt.Sprintf("%s not found: %s", entity, id),
			Code:    CodeNotFound,
			Context: map[string]any{
				"entity": entity,
				"id":     id,
			},
		},
		Entity: entity,
		ID:     id,
	}
}

// TransientError marks a network/rate-limit/5xx-class failure worth retrying.
type TransientError struct {
	*TrackerError
	Operation string
}

func NewTransientError(message, operation string, cause error) *TransientError {
	return &TransientError{
		TrackerError: &TrackerError{
			Message: message,
			Code:    CodeTransient,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
	}
}

// QuotaExceededError marks a provider-wide throttle (daily quota spent, rate
// limit hit). Unlike a TransientError it fails every call until the limit
// lifts, so callers should back off rather than retry per entry.
type QuotaExceededError struct {
	*TrackerError
	Operation string
}

func NewQuotaExceededError(message, operation string, cause error) *QuotaExceededError {
	return &QuotaExceededError{
		TrackerError: &TrackerError{
			Message: message,
			Code:    CodeQuota,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
	}
}

// MalformedResponseError marks oracle output that failed to parse as the
// expected structure.
type MalformedResponseError struct {
	*TrackerError
	Raw string
}

func NewMalformedResponseError(message, raw string, cause error) *MalformedResponseError {
	return &MalformedResponseError{
		TrackerError: &TrackerError{
			Message: message,
			Code:    CodeMalformed,
			Context: map[string]any{
				"raw_length": len(raw),
			},
			Cause: cause,
		},
		Raw: raw,
	}
}

// StoreError wraps a repository failure.
type StoreError struct {
	*TrackerError
	Operation string
	Entity    string
}

func NewStoreError(message, operation, entity string, cause error) *StoreError {
	return &StoreError{
		TrackerError: &TrackerError{
			Message: message,
			Code:    CodeStore,
			Context: map[string]any{
				"operation": operation,
				"entity":    entity,
			},
			Cause: cause,
		},
		Operation: operation,
		Entity:    entity,
	}
}

// ConfigError carries the enumerated list of missing/invalid settings so
// startup can report them all at once.
type ConfigError struct {
	*TrackerError
	Missing []string
}

func NewConfigError(missing []string) *ConfigError {
	return &ConfigError{
		TrackerError: &TrackerError{
			Message: fmt.Sprintf("configuration invalid: %d problem(s)", len(missing)),
			Code:    CodeConfig,
			Context: map[string]any{
				"missing": missing,
			},
		},
		Missing: missing,
	}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var tr *TransientError
	return errors.As(err, &tr)
}

// IsQuotaExceeded reports whether err is (or wraps) a QuotaExceededError.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
