package service

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/processor"
)

// fakeAdapter simulates a processor with strict idempotency-key
// semantics: a replayed create key returns the original resource
// instead of creating a second one, and a replayed update key is
// rejected outright.
type fakeAdapter struct {
	resources   map[string]*domain.PaymentResource
	keyToID     map[string]string
	usedKeys    map[string]bool
	createCalls int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		resources: map[string]*domain.PaymentResource{},
		keyToID:   map[string]string{},
		usedKeys:  map[string]bool{},
	}
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Create(ctx context.Context, params processor.CreateParams) (*domain.PaymentResource, error) {
	if id, ok := f.keyToID[params.IdempotencyKey]; ok {
		return f.resources[id], nil
	}
	f.createCalls++
	id := fmt.Sprintf("pi_%d", f.createCalls)
	res := &domain.PaymentResource{ID: id, Amount: params.Amount, Status: "CREATED"}
	f.resources[id] = res
	f.keyToID[params.IdempotencyKey] = id
	f.usedKeys[params.IdempotencyKey] = true
	return res, nil
}

func (f *fakeAdapter) Update(ctx context.Context, id, amount, idempotencyKey string) (*domain.PaymentResource, error) {
	if f.usedKeys[idempotencyKey] {
		return nil, &domain.ProcessorAPIError{StatusCode: 422, Message: "idempotency key already used"}
	}
	f.usedKeys[idempotencyKey] = true
	res, ok := f.resources[id]
	if !ok {
		return nil, &domain.ProcessorAPIError{StatusCode: 404, Message: "no such resource"}
	}
	res.Amount = amount
	return res, nil
}

func (f *fakeAdapter) Retrieve(ctx context.Context, id string) (*domain.PaymentResource, error) {
	res, ok := f.resources[id]
	if !ok {
		return nil, &domain.ProcessorAPIError{StatusCode: 404, Message: "no such resource"}
	}
	return res, nil
}

func (f *fakeAdapter) Capture(ctx context.Context, id string) (*domain.PaymentResource, error) {
	res, ok := f.resources[id]
	if !ok {
		return nil, &domain.ProcessorAPIError{StatusCode: 404, Message: "no such resource"}
	}
	captured := *res
	captured.Captured = true
	captured.CaptureID = "cap_" + id
	captured.CaptureAmount = res.Amount
	return &captured, nil
}

func (f *fakeAdapter) Exists(ctx context.Context, id string) bool {
	_, ok := f.resources[id]
	return ok
}

func (f *fakeAdapter) ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error) {
	return nil, nil
}

func (f *fakeAdapter) VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (*processor.WebhookEvent, error) {
	return nil, nil
}

func TestCreateIntent(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	got, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		Email:          "a@b.com",
		Description:    "Retreat",
		Amount:         "100.00",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.ID)
	assert.Equal(t, "100.00", got.Amount)
}

func TestCreateIntentIdempotentReplay(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())
	req := IntentRequest{Amount: "100.00", IdempotencyKey: "key-1"}

	first, err := svc.CreateOrUpdateIntent(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.CreateOrUpdateIntent(context.Background(), req)
	require.NoError(t, err)

	// Same key, same parameters: never two distinct resources.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, adapter.createCalls)
}

func TestUpdateIntentChangesAmount(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	created, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		Amount: "100.00", IdempotencyKey: "key-create",
	})
	require.NoError(t, err)

	updated, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		ExistingID: created.ID, Amount: "120.00", IdempotencyKey: "key-update",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "120.00", updated.Amount)
}

func TestUpdateIntentRejectsReplayedCreationKey(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	created, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		Amount: "100.00", IdempotencyKey: "key-create",
	})
	require.NoError(t, err)

	// Reusing the creation key for an amount change must surface the
	// processor's rejection, not silently replay the creation.
	_, err = svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		ExistingID: created.ID, Amount: "120.00", IdempotencyKey: "key-create",
	})
	var apiErr *domain.ProcessorAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.StatusCode)
}

func TestUpdateIntentSameAmountSkipsPatch(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	created, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		Amount: "100.00", IdempotencyKey: "key-create",
	})
	require.NoError(t, err)

	// No amount change: the update key must stay unused so the caller
	// can spend it later.
	got, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		ExistingID: created.ID, Amount: "100.00", IdempotencyKey: "key-update",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.False(t, adapter.usedKeys["key-update"])
}

func TestUpdateIntentFallsBackToCreateWhenGone(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	got, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		ExistingID: "pi_expired", Amount: "100.00", IdempotencyKey: "key-create",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", got.ID)
	assert.Equal(t, 1, adapter.createCalls)
}

func TestCaptureValidatesUpdatedAmount(t *testing.T) {
	adapter := newFakeAdapter()
	svc := NewPaymentService(adapter, zap.NewNop())

	created, err := svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		Amount: "100.00", IdempotencyKey: "key-create",
	})
	require.NoError(t, err)

	// Amount changes before capture; capture must validate against
	// the new amount, not the original quote.
	_, err = svc.CreateOrUpdateIntent(context.Background(), IntentRequest{
		ExistingID: created.ID, Amount: "120.00", IdempotencyKey: "key-update",
	})
	require.NoError(t, err)

	captured, err := svc.Capture(context.Background(), created.ID, "120.00")
	require.NoError(t, err)
	assert.Equal(t, "cap_"+created.ID, captured.ID)
	assert.Equal(t, "120.00", captured.Amount)

	_, err = svc.Capture(context.Background(), created.ID, "100.00")
	var mismatch *domain.AmountMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestCaptureRequiresIntentID(t *testing.T) {
	svc := NewPaymentService(newFakeAdapter(), zap.NewNop())

	_, err := svc.Capture(context.Background(), "", "100.00")

	var invalid *domain.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}
