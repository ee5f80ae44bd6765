// Package validator checks a payment processor's response against the
// caller's expectations before anything downstream trusts it. The
// locally requested amount is advisory only; the processor response is
// authoritative, but only after it passes these checks.
package validator

import (
	"github.com/ashgoren/registration-service/internal/domain"
)

// Expectation carries what the caller believes about the resource.
// Empty fields are not checked.
type Expectation struct {
	ExpectedID     string
	ExpectedAmount string
	// Captured selects the extraction branch: a completed capture
	// carries its id/amount nested under the capture record, not at
	// the top level of the order.
	Captured bool
}

// Result is the validated identity of the processor resource.
type Result struct {
	ID     string
	Amount string
	Email  string
}

// Check extracts (id, amount, email) from a normalized processor
// response and validates them. Pure; never mutates its inputs.
func Check(res *domain.PaymentResource, exp Expectation) (*Result, error) {
	id := res.ID
	amount := res.Amount
	if exp.Captured {
		id = res.CaptureID
		amount = res.CaptureAmount
	}

	if id == "" {
		return nil, &domain.MissingIDError{}
	}

	normalized, ok := domain.NormalizeAmount(amount)
	if !ok || amount == "" {
		return nil, &domain.MissingAmountError{ID: id}
	}

	if exp.ExpectedID != "" && exp.ExpectedID != id {
		return nil, &domain.IDMismatchError{Expected: exp.ExpectedID, Actual: id}
	}

	if exp.ExpectedAmount != "" {
		want, ok := domain.NormalizeAmount(exp.ExpectedAmount)
		if !ok {
			return nil, &domain.InvalidArgumentError{Msg: "expected amount is not a decimal: " + exp.ExpectedAmount}
		}
		if want != normalized {
			return nil, &domain.AmountMismatchError{Expected: want, Actual: normalized}
		}
	}

	return &Result{ID: id, Amount: normalized, Email: res.PayerEmail}, nil
}
