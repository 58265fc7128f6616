package outreach

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/outreach/outreach/internal/ratelimit"
)

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("outreach: invalid input")

// ErrNotFound is wrapped by NOT_FOUND service errors.
var ErrNotFound = errors.New("outreach: not found")

// ErrDomainLimited marks the per-domain politeness limit. It matches
// ratelimit.ErrLimited too.
var ErrDomainLimited = fmt.Errorf("outreach: per-domain limit: %w", ratelimit.ErrLimited)

// ServiceError is an error with an HTTP status and a stable code.
type ServiceError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func notFound(msg string) *ServiceError {
	return &ServiceError{Status: 404, Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
}

func rateLimited(msg string, err error) *ServiceError {
	return &ServiceError{Status: 429, Code: "RATE_LIMITED", Message: msg, Err: err}
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsServiceError converts err into a ServiceError when it carries an HTTP
// meaning: ServiceError itself, validation errors and limiter rejections.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return &ServiceError{Status: 400, Code: "VALIDATION_ERROR", Message: "Invalid request body", Err: ve}, true
	}
	var le *ratelimit.Error
	if errors.As(err, &le) {
		return &ServiceError{Status: le.Status, Code: le.Code, Message: "Too many requests", Err: le}, true
	}
	return nil, false
}
