package types

import (
	"errors"
	"fmt"
)

// Table operation errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidFilter = errors.New("invalid filter value type")
)

// Not-found kinds. Each wraps ErrNotFound so callers can match either the
// specific kind or the family.
var (
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	ErrTypeNotFound     = fmt.Errorf("document type %w", ErrNotFound)
	ErrRowNotFound      = fmt.Errorf("row %w", ErrNotFound)
	ErrFieldNotFound    = fmt.Errorf("field %w", ErrNotFound)
)

// Engine errors.
var (
	ErrNoTabularData      = errors.New("document has no tabular data")
	ErrMalformedPatch     = errors.New("malformed patch")
	ErrValidationFailed   = errors.New("validation failed")
	ErrRemoteLookupFailed = errors.New("remote lookup failed")
	ErrDuplicateField     = errors.New("duplicate field in document type")
)

// ValidationError carries the failing fields of a validation pass.
// errors.Is(err, ErrValidationFailed) holds for every ValidationError.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		fe := e.Errors[0]
		return fmt.Sprintf("%s: %s.%s: %s", ErrValidationFailed, fe.Field.Path, fe.Field.Field, fe.Message)
	}
	return fmt.Sprintf("%s: %d fields", ErrValidationFailed, len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
