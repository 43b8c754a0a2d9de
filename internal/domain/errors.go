package domain

import (
	"errors"
	"strings"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails validation
// (e.g. missing required field, non-positive dimension).
// Handlers should map this to HTTP 400.
var ErrValidation = errors.New("validation error")

// ErrActiveDelivery is returned when an operation is rejected because the
// target package has a delivery in a non-terminal status.
// Handlers should map this to HTTP 400 with a human-readable message.
var ErrActiveDelivery = errors.New("active delivery")

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level failures for one request payload.
// It matches ErrValidation under errors.Is, so handlers can branch on the
// sentinel and still serialize the per-field detail.
type ValidationError struct {
	Fields []FieldError
}

// Error joins the field messages into one line.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation error: " + strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrValidation) true for any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
