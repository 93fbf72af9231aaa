package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors used throughout the application
var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketAlreadyUsed  = errors.New("ticket already used")
	ErrTicketExpired      = errors.New("ticket category cutoff has passed")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrUserNotFound       = errors.New("user not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrQRDecode           = errors.New("no QR code found in image")
)

// ValidationError reports malformed input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil {
			return fmt.Sprintf("invalid input: %v", e.Err)
		}
		return ErrInvalidInput.Error()
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid input: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// InfrastructureError wraps a failure of the store or another backing
// service. Callers may retry the operation.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}

func (e *InfrastructureError) Retryable() bool {
	return true
}

// IsRetryable reports whether err carries an InfrastructureError.
func IsRetryable(err error) bool {
	var infra *InfrastructureError
	return errors.As(err, &infra) && infra.Retryable()
}
