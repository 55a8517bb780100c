package billing

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("Unauthorized")
	ErrProductNotFound   = errors.New("Product not found or inactive")
	ErrPassNotSupported  = errors.New("This product does not support pass purchase")
	ErrFreeProduct       = errors.New("Cannot purchase a free product")
	ErrPaymentInitiation = errors.New("Failed to initiate M-Pesa payment")
	ErrNoIncludedUsage   = errors.New("No included allowance for this metric")
)

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type detailedError struct {
	base error
	msg  string
}

func (e *detailedError) Error() string { return e.msg }
func (e *detailedError) Unwrap() error { return e.base }

func withMessage(base error, format string, args ...interface{}) error {
	return &detailedError{base: base, msg: fmt.Sprintf(format, args...)}
}
