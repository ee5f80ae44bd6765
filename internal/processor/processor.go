package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/pkg/config"
)

// ErrBadSignature marks a webhook whose signature did not verify.
// The handler answers 400; the processor redelivers on its own.
var ErrBadSignature = errors.New("webhook signature verification failed")

// CreateParams describes a new processor order / payment intent.
type CreateParams struct {
	Email          string
	Description    string
	Amount         string
	IdempotencyKey string
}

// WebhookEvent is the normalized form of one webhook delivery.
type WebhookEvent struct {
	Type             string
	CaptureCompleted bool
	PaymentID        string
	Amount           string
	Live             bool
}

// Adapter is the uniform surface over one payment processor. Which
// implementation is active is a startup decision; call sites depend
// only on this interface.
type Adapter interface {
	Name() string
	Create(ctx context.Context, params CreateParams) (*domain.PaymentResource, error)
	Update(ctx context.Context, id, amount, idempotencyKey string) (*domain.PaymentResource, error)
	Retrieve(ctx context.Context, id string) (*domain.PaymentResource, error)
	Capture(ctx context.Context, id string) (*domain.PaymentResource, error)
	// Exists is best-effort: any retrieval failure reads as "does not
	// exist". Callers treat a false negative as "create new", which
	// is always safe.
	Exists(ctx context.Context, id string) bool
	ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error)
	VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (*WebhookEvent, error)
}

// New builds the configured adapter. Clients are constructed here,
// once, and live for the process lifetime.
func New(cfg *config.Config, logger *zap.Logger) (Adapter, error) {
	switch cfg.PaymentProcessor {
	case "paypal":
		return NewPayPalAdapter(cfg, logger)
	case "stripe":
		return NewStripeAdapter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown payment processor %q", cfg.PaymentProcessor)
	}
}
