package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/internal/processor"
	"github.com/ashgoren/registration-service/internal/validator"
)

// IntentRequest asks for a processor order / payment intent covering
// Amount. The idempotency key is caller-generated and must be fresh
// for each logical attempt; it is passed through to the processor
// verbatim.
type IntentRequest struct {
	ExistingID     string `json:"existing_id"`
	Email          string `json:"email"`
	Description    string `json:"description"`
	Amount         string `json:"amount" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

type IntentResult struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type PaymentService struct {
	adapter processor.Adapter
	logger  *zap.Logger
}

func NewPaymentService(adapter processor.Adapter, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		adapter: adapter,
		logger:  logger,
	}
}

// CreateOrUpdateIntent creates a new processor resource, or patches
// the amount of an existing one when it still resolves. An existing
// id that no longer resolves (expired order, wrong environment) falls
// back to create-new under the same creation idempotency key. Every
// return path is validated before the caller sees it; this method
// never touches the order store.
func (s *PaymentService) CreateOrUpdateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if req.ExistingID != "" && s.adapter.Exists(ctx, req.ExistingID) {
		return s.updateIntent(ctx, req)
	}
	return s.createIntent(ctx, req)
}

func (s *PaymentService) createIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	res, err := s.adapter.Create(ctx, processor.CreateParams{
		Email:          req.Email,
		Description:    req.Description,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		s.logger.Error("failed to create payment intent",
			zap.String("processor", s.adapter.Name()),
			zap.Error(err))
		return nil, err
	}

	checked, err := validator.Check(res, validator.Expectation{ExpectedAmount: req.Amount})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment intent created",
		zap.String("processor", s.adapter.Name()),
		zap.String("intent_id", checked.ID),
		zap.String("amount", checked.Amount))

	return &IntentResult{ID: checked.ID, Amount: checked.Amount, ClientSecret: res.ClientSecret}, nil
}

func (s *PaymentService) updateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	res, err := s.adapter.Retrieve(ctx, req.ExistingID)
	if err != nil {
		return nil, err
	}

	if !domain.SameAmount(res.Amount, req.Amount) {
		// The amount patch rides the caller's fresh idempotency key;
		// reusing the creation key here would dedupe the update away.
		res, err = s.adapter.Update(ctx, req.ExistingID, req.Amount, req.IdempotencyKey)
		if err != nil {
			s.logger.Error("failed to update payment intent",
				zap.String("processor", s.adapter.Name()),
				zap.String("intent_id", req.ExistingID),
				zap.Error(err))
			return nil, err
		}
	}

	checked, err := validator.Check(res, validator.Expectation{
		ExpectedID:     req.ExistingID,
		ExpectedAmount: req.Amount,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment intent updated",
		zap.String("processor", s.adapter.Name()),
		zap.String("intent_id", checked.ID),
		zap.String("amount", checked.Amount))

	return &IntentResult{ID: checked.ID, Amount: checked.Amount, ClientSecret: res.ClientSecret}, nil
}

// Capture captures the intent and validates the processor-reported
// capture amount against what the order expects. The capture response
// is the authoritative amount; a mismatch fails closed, never
// auto-corrects.
func (s *PaymentService) Capture(ctx context.Context, intentID, expectedAmount string) (*IntentResult, error) {
	if intentID == "" {
		return nil, &domain.InvalidArgumentError{Msg: "payment intent id required for capture"}
	}

	res, err := s.adapter.Capture(ctx, intentID)
	if err != nil {
		s.logger.Error("failed to capture payment",
			zap.String("processor", s.adapter.Name()),
			zap.String("intent_id", intentID),
			zap.Error(err))
		return nil, err
	}

	checked, err := validator.Check(res, validator.Expectation{
		ExpectedAmount: expectedAmount,
		Captured:       true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment captured",
		zap.String("processor", s.adapter.Name()),
		zap.String("intent_id", intentID),
		zap.String("capture_id", checked.ID),
		zap.String("amount", checked.Amount))

	return &IntentResult{ID: checked.ID, Amount: checked.Amount}, nil
}
