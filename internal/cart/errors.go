package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField matches any *MissingFieldError.
	ErrMissingField = errors.New("missing field")
	// ErrInvalidField matches any *InvalidFieldError.
	ErrInvalidField = errors.New("invalid field")
	// ErrItemNotFound indicates no line item with the given unique key is in the cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrCartNotFound indicates no stored cart exists for the identifier.
	ErrCartNotFound = errors.New("cart not found")
	// ErrInvalidInput is returned when the provided arguments are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// MissingFieldError reports a required record field that is absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cart: missing field %q", e.Field)
}

// Is lets errors.Is match ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// InvalidFieldError reports a record field whose value has an unsupported type.
type InvalidFieldError struct {
	Field string
	Value any
}

func (e *InvalidFieldError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cart: field %q has unsupported value of type %T", e.Field, e.Value)
}

// Is lets errors.Is match ErrInvalidField.
func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}
