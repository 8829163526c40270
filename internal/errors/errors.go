// Package errors provides structured error types for the project assistant.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Transport and gateway sentinels.
var (
	ErrTimeout           = errors.New("operation timed out")
	ErrRateLimit         = errors.New("rate limit exceeded")
	ErrUnavailable       = errors.New("service unavailable")
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMalformedResponse = errors.New("malformed gateway response")
)

// Validation-category sentinels. A turn failing with one of these is rejected
// locally and leaves state unchanged.
var (
	ErrInvalidName            = errors.New("invalid project name")
	ErrIllegalTransition      = errors.New("illegal phase transition")
	ErrIncompleteSynthesis    = errors.New("incomplete synthesis")
	ErrUnknownAction          = errors.New("unknown action")
	ErrDependencyNotSatisfied = errors.New("dependency not satisfied")
	ErrMissingReason          = errors.New("missing block reason")
	ErrCyclicDependency       = errors.New("cyclic dependency")
	ErrDuplicateAction        = errors.New("duplicate action id")
	ErrUnknownCommand         = errors.New("unknown command")
)

// Fatal or abort-the-turn sentinels.
var (
	ErrGatewayFailure = errors.New("gateway failure")
	ErrStoreCorrupt   = errors.New("stored project state is corrupt")
)

var validationKinds = []error{
	ErrInvalidName,
	ErrIllegalTransition,
	ErrIncompleteSynthesis,
	ErrUnknownAction,
	ErrDependencyNotSatisfied,
	ErrMissingReason,
	ErrCyclicDependency,
	ErrDuplicateAction,
	ErrUnknownCommand,
	ErrInvalidInput,
}

// ValidationError carries the details of a rejected operation.
type ValidationError struct {
	Kind     error
	Msg      string
	ValidIDs []string // UnknownAction
	Missing  []string // IncompleteSynthesis, DependencyNotSatisfied
	Cycle    []string // CyclicDependency
}

func (e *ValidationError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Invalid creates a ValidationError of the given kind.
func Invalid(kind error, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// UnknownAction reports a reference to an action id that does not exist,
// listing the ids that do.
func UnknownAction(id string, valid []string) *ValidationError {
	msg := fmt.Sprintf("action %q not found", id)
	if len(valid) > 0 {
		msg += ". Valid IDs: " + strings.Join(valid, ", ")
	} else {
		msg += ". There are no actions yet"
	}
	return &ValidationError{Kind: ErrUnknownAction, Msg: msg, ValidIDs: valid}
}

// IncompleteSynthesis reports the synthesis fields that are missing.
func IncompleteSynthesis(missing []string) *ValidationError {
	return &ValidationError{
		Kind:    ErrIncompleteSynthesis,
		Msg:     "missing required fields: " + strings.Join(missing, ", "),
		Missing: missing,
	}
}

// IsValidation returns true if err belongs to the validation category and
// should be recovered locally.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 408, 429, 500, 502, 503, 504, 529:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrMalformedResponse)
}
