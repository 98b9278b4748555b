package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations and expected
// pipeline outcomes.
var (
	// Webhook boundary
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleRequest     = errors.New("webhook timestamp outside freshness window")
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// Agent resolution
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentNotTracked    = errors.New("external user is not a tracked agent")
	ErrAgentExists        = errors.New("an agent with this email already exists")
	ErrExternalIDConflict = errors.New("agent is bound to a different external user id")
	ErrDirectoryLookup    = errors.New("directory service lookup failed")

	// Agent validation
	ErrFullNameRequired = errors.New("full name is required")
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email format is invalid")

	// Activity validation
	ErrAgentRequired      = errors.New("agent identity is required")
	ErrMessageKeyRequired = errors.New("thread and message keys are required")
	ErrOccurredAtRequired = errors.New("event timestamp is required")
	ErrShiftRequired      = errors.New("shift classification is required")

	// Correlation
	ErrNoOpenTicket    = errors.New("no open ticket-taken record to match")
	ErrNotTicketTaken  = errors.New("only ticket-taken records can be matched")
	ErrAlreadyMatched  = errors.New("ticket-taken record is already matched")
	ErrOrderingAnomaly = errors.New("reply timestamp is not after ticket-taken timestamp")

	// Generic
	ErrNotFound     = errors.New("resource not found")
	ErrInternal     = errors.New("internal server error")
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Error constructors for common cases
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
