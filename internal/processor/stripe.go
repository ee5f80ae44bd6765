package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/pkg/config"
)

const paymentSucceededEvent = "payment_intent.succeeded"

type StripeAdapter struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeAdapter(cfg *config.Config, logger *zap.Logger) *StripeAdapter {
	api := &client.API{}
	api.Init(cfg.StripeSecretKey, nil)

	return &StripeAdapter{
		api:           api,
		webhookSecret: cfg.StripeWebhookSecret,
		logger:        logger,
	}
}

func (a *StripeAdapter) Name() string { return "stripe" }

func (a *StripeAdapter) Create(ctx context.Context, params CreateParams) (*domain.PaymentResource, error) {
	cents, ok := domain.AmountToCents(params.Amount)
	if !ok {
		return nil, &domain.InvalidArgumentError{Msg: "amount is not a decimal: " + params.Amount}
	}

	piParams := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(cents),
		Currency:     stripe.String(string(stripe.CurrencyUSD)),
		Description:  stripe.String(params.Description),
		ReceiptEmail: stripe.String(params.Email),
	}
	piParams.Context = ctx
	piParams.SetIdempotencyKey(params.IdempotencyKey)

	pi, err := a.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return stripeIntentResource(pi), nil
}

func (a *StripeAdapter) Update(ctx context.Context, id, amount, idempotencyKey string) (*domain.PaymentResource, error) {
	cents, ok := domain.AmountToCents(amount)
	if !ok {
		return nil, &domain.InvalidArgumentError{Msg: "amount is not a decimal: " + amount}
	}

	piParams := &stripe.PaymentIntentParams{
		Amount: stripe.Int64(cents),
	}
	piParams.Context = ctx
	piParams.SetIdempotencyKey(idempotencyKey)

	pi, err := a.api.PaymentIntents.Update(id, piParams)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return stripeIntentResource(pi), nil
}

func (a *StripeAdapter) Retrieve(ctx context.Context, id string) (*domain.PaymentResource, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := a.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return stripeIntentResource(pi), nil
}

func (a *StripeAdapter) Capture(ctx context.Context, id string) (*domain.PaymentResource, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx

	pi, err := a.api.PaymentIntents.Capture(id, params)
	if err != nil {
		return nil, wrapStripeErr(err)
	}
	return stripeIntentResource(pi), nil
}

func (a *StripeAdapter) Exists(ctx context.Context, id string) bool {
	if _, err := a.Retrieve(ctx, id); err != nil {
		a.logger.Info("stripe payment intent not resolvable, treating as nonexistent",
			zap.String("intent_id", id), zap.Error(err))
		return false
	}
	return true
}

func (a *StripeAdapter) VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), a.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	out := &WebhookEvent{
		Type:             string(event.Type),
		CaptureCompleted: string(event.Type) == paymentSucceededEvent,
		Live:             event.Livemode,
	}
	if out.CaptureCompleted {
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent from webhook: %w", err)
		}
		out.PaymentID = pi.ID
		out.Amount = domain.CentsToAmount(pi.AmountReceived)
	}
	return out, nil
}

// ListTransactions lists charges over the reconciliation lookback and
// keeps those whose description matches the event's correlation key.
// The charges API has no server-side description filter.
func (a *StripeAdapter) ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error) {
	params := &stripe.ChargeListParams{
		CreatedRange: &stripe.RangeQueryParams{
			GreaterThanOrEqual: time.Now().Add(-reportingLookback).Unix(),
		},
	}
	params.Context = ctx
	params.Limit = stripe.Int64(100)

	var out []domain.NormalizedTransaction
	iter := a.api.Charges.List(params)
	for iter.Next() {
		ch := iter.Charge()
		if ch.Description != description || ch.Status != "succeeded" {
			continue
		}
		email := ch.ReceiptEmail
		if email == "" && ch.BillingDetails != nil {
			email = ch.BillingDetails.Email
		}
		out = append(out, domain.NormalizedTransaction{
			ID:       ch.ID,
			Amount:   domain.CentsToAmount(ch.Amount),
			Currency: string(ch.Currency),
			Date:     time.Unix(ch.Created, 0).UTC(),
			Email:    email,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeErr(err)
	}
	return out, nil
}

func stripeIntentResource(pi *stripe.PaymentIntent) *domain.PaymentResource {
	res := &domain.PaymentResource{
		ID:           pi.ID,
		Amount:       domain.CentsToAmount(pi.Amount),
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		PayerEmail:   pi.ReceiptEmail,
	}
	if pi.Status == stripe.PaymentIntentStatusSucceeded {
		res.Captured = true
		res.CaptureID = pi.ID
		res.CaptureAmount = domain.CentsToAmount(pi.AmountReceived)
	}
	return res
}

func wrapStripeErr(err error) error {
	if sErr, ok := err.(*stripe.Error); ok {
		return &domain.ProcessorAPIError{StatusCode: sErr.HTTPStatusCode, Message: sErr.Msg, Err: err}
	}
	return &domain.ProcessorAPIError{Message: err.Error(), Err: err}
}
