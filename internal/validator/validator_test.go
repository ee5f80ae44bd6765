package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashgoren/registration-service/internal/domain"
)

func TestCheckAcceptsValidResponse(t *testing.T) {
	res := &domain.PaymentResource{ID: "pi_123", Amount: "100.00", PayerEmail: "a@b.com"}

	got, err := Check(res, Expectation{})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.ID)
	assert.Equal(t, "100.00", got.Amount)
	assert.Equal(t, "a@b.com", got.Email)
}

func TestCheckCaptureBranch(t *testing.T) {
	// A completed capture carries id/amount on the capture record;
	// the top-level order fields must not be consulted.
	res := &domain.PaymentResource{
		ID:            "order_1",
		Amount:        "100.00",
		CaptureID:     "cap_123",
		CaptureAmount: "120.00",
		Captured:      true,
	}

	got, err := Check(res, Expectation{Captured: true, ExpectedAmount: "120.00"})
	require.NoError(t, err)
	assert.Equal(t, "cap_123", got.ID)
	assert.Equal(t, "120.00", got.Amount)
}

func TestCheckMissingID(t *testing.T) {
	_, err := Check(&domain.PaymentResource{Amount: "100.00"}, Expectation{})

	var missingID *domain.MissingIDError
	assert.ErrorAs(t, err, &missingID)
}

func TestCheckMissingAmount(t *testing.T) {
	_, err := Check(&domain.PaymentResource{ID: "pi_123"}, Expectation{})

	var missingAmount *domain.MissingAmountError
	require.ErrorAs(t, err, &missingAmount)
	assert.Equal(t, "pi_123", missingAmount.ID)
}

func TestCheckIDMismatch(t *testing.T) {
	res := &domain.PaymentResource{ID: "pi_other", Amount: "100.00"}

	_, err := Check(res, Expectation{ExpectedID: "pi_123"})

	var mismatch *domain.IDMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "pi_123", mismatch.Expected)
	assert.Equal(t, "pi_other", mismatch.Actual)
}

func TestCheckAmountMismatch(t *testing.T) {
	res := &domain.PaymentResource{ID: "pi_123", Amount: "100.00"}

	_, err := Check(res, Expectation{ExpectedAmount: "120.00"})

	var mismatch *domain.AmountMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "120.00", mismatch.Expected)
	assert.Equal(t, "100.00", mismatch.Actual)
}

func TestCheckAmountToleratesRepresentation(t *testing.T) {
	// A raw numeric compare would reject these; the fixed 2-decimal
	// form must not.
	res := &domain.PaymentResource{ID: "pi_123", Amount: "100"}

	got, err := Check(res, Expectation{ExpectedAmount: "100.00000001"})
	require.NoError(t, err)
	assert.Equal(t, "100.00", got.Amount)
}
