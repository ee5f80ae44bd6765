package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/events"
	"github.com/ashgoren/registration-service/internal/repository"
)

// OrderStore is the slice of the repository the order flows need.
type OrderStore interface {
	SavePending(ctx context.Context, orderID string, payload map[string]interface{}) (string, error)
	SaveFinal(ctx context.Context, orderID string, payload map[string]interface{}) error
	PeopleCount(ctx context.Context) (int, error)
}

// FinalizedPublisher feeds the downstream sink (spreadsheet sync)
// with completed orders. Best-effort.
type FinalizedPublisher interface {
	PublishOrderFinalized(event events.OrderFinalizedEvent) error
}

type OrderService struct {
	store    OrderStore
	producer FinalizedPublisher
	logger   *zap.Logger
}

func NewOrderService(store OrderStore, producer FinalizedPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		store:    store,
		producer: producer,
		logger:   logger,
	}
}

// SavePending persists the durable staging record. It must succeed
// before a payment intent is created: the intent carries no reference
// back to this system, so the store is the anchor.
func (s *OrderService) SavePending(ctx context.Context, orderID string, payload map[string]interface{}) (string, error) {
	id, err := s.store.SavePending(ctx, orderID, payload)
	if err != nil {
		s.logger.Error("failed to save pending order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return "", err
	}

	s.logger.Info("pending order saved", zap.String("order_id", id))
	return id, nil
}

// SaveFinal merges completion data into the order, then publishes the
// finalized event for the spreadsheet sink. A publish failure is
// logged and swallowed; the sink catches up from the store (eventual
// consistency).
func (s *OrderService) SaveFinal(ctx context.Context, orderID string, payload map[string]interface{}) error {
	if err := s.store.SaveFinal(ctx, orderID, payload); err != nil {
		s.logger.Error("failed to save final order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return err
	}

	event := events.OrderFinalizedEvent{
		EventID:   uuid.New().String(),
		OrderID:   orderID,
		PaymentID: stringField(payload, "payment_id"),
		Total:     floatField(payload, "total"),
		People:    repository.PeopleCountOf(payload),
		Timestamp: time.Now().UTC(),
	}
	if err := s.producer.PublishOrderFinalized(event); err != nil {
		s.logger.Error("failed to publish finalized order event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	s.logger.Info("final order saved",
		zap.String("order_id", orderID),
		zap.String("payment_id", event.PaymentID),
		zap.Int("people", event.People))
	return nil
}

// PeopleCount reads the registration counter aggregate.
func (s *OrderService) PeopleCount(ctx context.Context) (int, error) {
	return s.store.PeopleCount(ctx)
}

func stringField(payload map[string]interface{}, key string) string {
	v, _ := payload[key].(string)
	return v
}

func floatField(payload map[string]interface{}, key string) float64 {
	v, _ := payload[key].(float64)
	return v
}
