package data

import (
	"errors"
	"fmt"
)

// ErrRegistrySealed is returned when registering into a registry after Seal.
var ErrRegistrySealed = errors.New("registry is sealed")

// ValidationError reports a payload that cannot become a domain record.
type ValidationError struct {
	Record DType
	Field  string
	Msg    string
	Err    error
}

func (e *ValidationError) Error() string {
	prefix := "validation error"
	if e.Record != "" {
		prefix = fmt.Sprintf("invalid %s", e.Record)
	}
	if e.Field != "" {
		prefix = fmt.Sprintf("%s: field %q", prefix, e.Field)
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DuplicateRegistrationError is returned when a second constructor is registered for a tag.
type DuplicateRegistrationError struct {
	DType DType
}

func (e *DuplicateRegistrationError) Error() string {
	return fmt.Sprintf("constructor already registered for dtype %q", e.DType)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func missingField(dtype DType, field string) error {
	return &ValidationError{Record: dtype, Field: field, Msg: "required field missing"}
}
