// Package webhook handles asynchronously delivered payment webhooks.
// A delivery moves through: received, signature-verified,
// event-filtered, retrying order lookup, then resolved or escalated.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/mailer"
	"github.com/ashgoren/registration-service/internal/processor"
	"github.com/ashgoren/registration-service/internal/repository"
)

type Outcome int

const (
	// OutcomeRejected: signature failed; the processor redelivers.
	OutcomeRejected Outcome = iota
	// OutcomeIgnored: verified but not the event type of interest.
	OutcomeIgnored
	// OutcomeResolved: a matching order was found.
	OutcomeResolved
	// OutcomeEscalated: no match within the retry budget; operators
	// were notified. Still acknowledged, redelivery would not help.
	OutcomeEscalated
)

// OrderFinder is the read-only store lookup the finalizer needs.
type OrderFinder interface {
	FindFinalByPaymentID(ctx context.Context, paymentID string, isTest bool) (*domain.Order, error)
}

type Finalizer struct {
	adapter     processor.Adapter
	finder      OrderFinder
	mailer      mailer.Mailer
	logger      *zap.Logger
	baseDelay   time.Duration
	maxAttempts int
	sleep       func(time.Duration)
}

func NewFinalizer(adapter processor.Adapter, finder OrderFinder, m mailer.Mailer,
	baseDelay time.Duration, maxAttempts int, logger *zap.Logger) *Finalizer {
	return &Finalizer{
		adapter:     adapter,
		finder:      finder,
		mailer:      m,
		logger:      logger,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
		sleep:       time.Sleep,
	}
}

// Handle processes one webhook delivery. It verifies the signature,
// filters to capture-completed events, and looks up the matching
// order with exponential backoff: the processor's delivery and this
// system's own final-order write race with no ordering guarantee, so
// a first-miss is expected, not an error. It never writes order data.
func (f *Finalizer) Handle(ctx context.Context, r *http.Request, body []byte) (Outcome, error) {
	event, err := f.adapter.VerifyWebhook(ctx, r, body)
	if err != nil {
		if errors.Is(err, processor.ErrBadSignature) {
			f.logger.Warn("webhook signature rejected",
				zap.String("processor", f.adapter.Name()),
				zap.Error(err))
			return OutcomeRejected, err
		}
		return OutcomeRejected, err
	}

	if !event.CaptureCompleted {
		f.logger.Info("ignoring webhook event",
			zap.String("processor", f.adapter.Name()),
			zap.String("event_type", event.Type))
		return OutcomeIgnored, nil
	}

	isTest := !event.Live
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		order, err := f.finder.FindFinalByPaymentID(ctx, event.PaymentID, isTest)
		if err == nil {
			f.logger.Info("webhook matched order",
				zap.String("payment_id", event.PaymentID),
				zap.String("order_id", order.OrderID),
				zap.Int("attempt", attempt+1))
			return OutcomeResolved, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return OutcomeRejected, fmt.Errorf("order lookup failed: %w", err)
		}

		if attempt < f.maxAttempts-1 {
			f.sleep(f.baseDelay * (1 << attempt))
		}
	}

	f.logger.Error("no order found for webhook payment",
		zap.String("processor", f.adapter.Name()),
		zap.String("payment_id", event.PaymentID),
		zap.Bool("test", isTest),
		zap.Int("attempts", f.maxAttempts))

	subject := fmt.Sprintf("Unmatched %s payment %s", f.adapter.Name(), event.PaymentID)
	msg := fmt.Sprintf(
		"A %s webhook reported a completed capture with payment id %s (amount %s), "+
			"but no matching order was found after %d attempts.",
		f.adapter.Name(), event.PaymentID, event.Amount, f.maxAttempts)
	if mailErr := f.mailer.Send(ctx, subject, msg); mailErr != nil {
		f.logger.Error("failed to send escalation email", zap.Error(mailErr))
	}

	return OutcomeEscalated, nil
}
