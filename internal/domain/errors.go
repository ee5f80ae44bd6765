package domain

import "fmt"

// InvalidArgumentError reports caller misuse, e.g. a capture request
// without a payment intent id.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Msg
}

// MissingIDError: the processor response carried no extractable id.
type MissingIDError struct{}

func (e *MissingIDError) Error() string {
	return "no id in payment processor response"
}

// MissingAmountError: the processor response carried no extractable
// amount for the given resource.
type MissingAmountError struct {
	ID string
}

func (e *MissingAmountError) Error() string {
	return fmt.Sprintf("no amount in payment processor response for %s", e.ID)
}

// IDMismatchError: the processor returned a different resource than
// the one the caller asked about.
type IDMismatchError struct {
	Expected string
	Actual   string
}

func (e *IDMismatchError) Error() string {
	return fmt.Sprintf("payment id mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// AmountMismatchError: the processor-reported amount differs from the
// expected amount after 2-decimal normalization. Never auto-corrected.
type AmountMismatchError struct {
	Expected string
	Actual   string
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// ProcessorAPIError wraps a non-2xx or malformed processor response.
type ProcessorAPIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ProcessorAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("processor api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("processor api error (status %d)", e.StatusCode)
}

func (e *ProcessorAPIError) Unwrap() error { return e.Err }

// PermissionDeniedError: client and server disagree on the mode of
// operation (e.g. waitlist flag) or an auth check failed.
type PermissionDeniedError struct {
	Msg string
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: " + e.Msg
}
