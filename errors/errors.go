package errors

import "fmt"

// DriverError is the interface satisfied by every error the kernel core
// returns. It's always possible to tell its KernelError kind via errors.Is.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	WrapError(err error) DriverError
	Unwrap() error
}

// -----------------------------------------------------------------------------

// wrappedError carries a context message alongside the KernelError kind it
// originated from, so that chained WithMessage/WrapError calls don't erase
// the original classification.
type wrappedError struct {
	message string
	kind    KernelError
}

func (e wrappedError) Error() string {
	return e.message
}

func (e wrappedError) WithMessage(message string) DriverError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", e.message, message),
		kind:    e.kind,
	}
}

func (e wrappedError) WrapError(err error) DriverError {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		kind:    e.kind,
	}
}

func (e wrappedError) Unwrap() error {
	return e.kind
}
