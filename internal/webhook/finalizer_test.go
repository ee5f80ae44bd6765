package webhook

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/processor"
	"github.com/ashgoren/registration-service/internal/repository"
)

type stubAdapter struct {
	event *processor.WebhookEvent
	err   error
}

func (s *stubAdapter) Name() string { return "stub" }
func (s *stubAdapter) Create(ctx context.Context, params processor.CreateParams) (*domain.PaymentResource, error) {
	return nil, nil
}
func (s *stubAdapter) Update(ctx context.Context, id, amount, key string) (*domain.PaymentResource, error) {
	return nil, nil
}
func (s *stubAdapter) Retrieve(ctx context.Context, id string) (*domain.PaymentResource, error) {
	return nil, nil
}
func (s *stubAdapter) Capture(ctx context.Context, id string) (*domain.PaymentResource, error) {
	return nil, nil
}
func (s *stubAdapter) Exists(ctx context.Context, id string) bool { return false }
func (s *stubAdapter) ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error) {
	return nil, nil
}
func (s *stubAdapter) VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (*processor.WebhookEvent, error) {
	return s.event, s.err
}

// stubFinder misses until succeedOn, recording the partition flag of
// every lookup.
type stubFinder struct {
	succeedOn int
	calls     int
	testFlags []bool
}

func (s *stubFinder) FindFinalByPaymentID(ctx context.Context, paymentID string, isTest bool) (*domain.Order, error) {
	s.calls++
	s.testFlags = append(s.testFlags, isTest)
	if s.succeedOn > 0 && s.calls >= s.succeedOn {
		return &domain.Order{OrderID: "order-1", PaymentID: paymentID, IsTestOrder: isTest}, nil
	}
	return nil, repository.ErrOrderNotFound
}

type stubMailer struct {
	sent []string
}

func (s *stubMailer) Send(ctx context.Context, subject, body string) error {
	s.sent = append(s.sent, subject)
	return nil
}

func newTestFinalizer(adapter *stubAdapter, finder *stubFinder, m *stubMailer) (*Finalizer, *[]time.Duration) {
	f := NewFinalizer(adapter, finder, m, 10*time.Millisecond, 4, zap.NewNop())
	var sleeps []time.Duration
	f.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return f, &sleeps
}

func captureEvent(live bool) *processor.WebhookEvent {
	return &processor.WebhookEvent{
		Type:             "PAYMENT.CAPTURE.COMPLETED",
		CaptureCompleted: true,
		PaymentID:        "cap_123",
		Amount:           "120.00",
		Live:             live,
	}
}

func webhookRequest(t *testing.T) *http.Request {
	req, err := http.NewRequest(http.MethodPost, "/webhook", nil)
	require.NoError(t, err)
	return req
}

func TestHandleResolvesAfterRetries(t *testing.T) {
	finder := &stubFinder{succeedOn: 3}
	f, sleeps := newTestFinalizer(&stubAdapter{event: captureEvent(true)}, finder, &stubMailer{})

	outcome, err := f.Handle(context.Background(), webhookRequest(t), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeResolved, outcome)

	// Two misses, two backoff sleeps: base, base*2.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *sleeps)
	assert.Equal(t, 3, finder.calls)
}

func TestHandleEscalatesAfterRetryBudget(t *testing.T) {
	finder := &stubFinder{}
	m := &stubMailer{}
	f, sleeps := newTestFinalizer(&stubAdapter{event: captureEvent(true)}, finder, m)

	outcome, err := f.Handle(context.Background(), webhookRequest(t), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome)
	assert.Equal(t, 4, finder.calls)
	// No sleep after the final attempt.
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, *sleeps)
	require.Len(t, m.sent, 1)
	assert.Contains(t, m.sent[0], "cap_123")
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	adapter := &stubAdapter{event: &processor.WebhookEvent{Type: "CHECKOUT.ORDER.APPROVED"}}
	finder := &stubFinder{}
	f, _ := newTestFinalizer(adapter, finder, &stubMailer{})

	outcome, err := f.Handle(context.Background(), webhookRequest(t), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Zero(t, finder.calls)
}

func TestHandleRejectsBadSignature(t *testing.T) {
	adapter := &stubAdapter{err: processor.ErrBadSignature}
	f, _ := newTestFinalizer(adapter, &stubFinder{}, &stubMailer{})

	outcome, err := f.Handle(context.Background(), webhookRequest(t), []byte(`{}`))
	assert.Equal(t, OutcomeRejected, outcome)
	assert.ErrorIs(t, err, processor.ErrBadSignature)
}

func TestHandleScopesLookupToPartition(t *testing.T) {
	// A sandbox-delivered capture must only be looked up among test
	// orders, never production ones.
	finder := &stubFinder{succeedOn: 1}
	f, _ := newTestFinalizer(&stubAdapter{event: captureEvent(false)}, finder, &stubMailer{})

	_, err := f.Handle(context.Background(), webhookRequest(t), []byte(`{}`))
	require.NoError(t, err)
	require.NotEmpty(t, finder.testFlags)
	for _, isTest := range finder.testFlags {
		assert.True(t, isTest)
	}
}
