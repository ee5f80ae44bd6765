package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/plutov/paypal/v4"
	"go.uber.org/zap"

	"github.com/ashgoren/registration-service/internal/domain"
	"github.com/ashgoren/registration-service/pkg/config"
)

const captureCompletedEvent = "PAYMENT.CAPTURE.COMPLETED"

// The reporting API rejects windows wider than 31 days, so the
// trailing lookback is covered in 30-day chunks.
const (
	reportingWindow   = 30 * 24 * time.Hour
	reportingLookback = 300 * 24 * time.Hour
)

type PayPalAdapter struct {
	client    *paypal.Client
	http      *http.Client
	webhookID string
	live      bool
	logger    *zap.Logger
}

func NewPayPalAdapter(cfg *config.Config, logger *zap.Logger) (*PayPalAdapter, error) {
	base := paypal.APIBaseSandBox
	if cfg.IsProduction() {
		base = paypal.APIBaseLive
	}

	client, err := paypal.NewClient(cfg.PayPalClientID, cfg.PayPalSecret, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal client: %w", err)
	}

	return &PayPalAdapter{
		client:    client,
		http:      &http.Client{Timeout: 30 * time.Second},
		webhookID: cfg.PayPalWebhookID,
		live:      cfg.IsProduction(),
		logger:    logger,
	}, nil
}

func (a *PayPalAdapter) Name() string { return "paypal" }

func (a *PayPalAdapter) Create(ctx context.Context, params CreateParams) (*domain.PaymentResource, error) {
	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: "USD",
			Value:    params.Amount,
		},
		Description: params.Description,
	}}

	order, err := a.client.CreateOrderWithPaypalRequestID(ctx, paypal.OrderIntentCapture,
		units, nil, nil, params.IdempotencyKey)
	if err != nil {
		return nil, wrapPayPalErr(err)
	}

	return paypalOrderResource(order), nil
}

// Update patches the order amount in place. The orders API has no SDK
// helper for PATCH, so the request is built on the SDK client, which
// still owns auth. The caller's fresh idempotency key rides along as
// the PayPal-Request-Id so a retried update cannot replay the
// original creation.
func (a *PayPalAdapter) Update(ctx context.Context, id, amount, idempotencyKey string) (*domain.PaymentResource, error) {
	patch := []map[string]interface{}{{
		"op":   "replace",
		"path": "/purchase_units/@reference_id=='default'/amount",
		"value": map[string]string{
			"currency_code": "USD",
			"value":         amount,
		},
	}}

	req, err := a.client.NewRequest(ctx, http.MethodPatch,
		fmt.Sprintf("%s/v2/checkout/orders/%s", a.client.APIBase, id), patch)
	if err != nil {
		return nil, fmt.Errorf("failed to build order patch: %w", err)
	}
	req.Header.Set("PayPal-Request-Id", idempotencyKey)

	if err := a.client.SendWithAuth(req, nil); err != nil {
		return nil, wrapPayPalErr(err)
	}

	// PATCH returns no body; re-fetch for the authoritative state.
	return a.Retrieve(ctx, id)
}

func (a *PayPalAdapter) Retrieve(ctx context.Context, id string) (*domain.PaymentResource, error) {
	order, err := a.client.GetOrder(ctx, id)
	if err != nil {
		return nil, wrapPayPalErr(err)
	}
	return paypalOrderResource(order), nil
}

func (a *PayPalAdapter) Capture(ctx context.Context, id string) (*domain.PaymentResource, error) {
	capture, err := a.client.CaptureOrder(ctx, id, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, wrapPayPalErr(err)
	}

	res := &domain.PaymentResource{
		ID:       capture.ID,
		Status:   string(capture.Status),
		Captured: true,
	}
	if capture.Payer != nil {
		res.PayerEmail = capture.Payer.EmailAddress
	}
	if len(capture.PurchaseUnits) > 0 && capture.PurchaseUnits[0].Payments != nil &&
		len(capture.PurchaseUnits[0].Payments.Captures) > 0 {
		captured := capture.PurchaseUnits[0].Payments.Captures[0]
		res.CaptureID = captured.ID
		if captured.Amount != nil {
			if v, ok := domain.NormalizeAmount(captured.Amount.Value); ok {
				res.CaptureAmount = v
			}
		}
	}
	return res, nil
}

func (a *PayPalAdapter) Exists(ctx context.Context, id string) bool {
	_, err := a.client.GetOrder(ctx, id)
	if err != nil {
		a.logger.Info("paypal order not resolvable, treating as nonexistent",
			zap.String("order_id", id), zap.Error(err))
		return false
	}
	return true
}

func (a *PayPalAdapter) VerifyWebhook(ctx context.Context, r *http.Request, body []byte) (*WebhookEvent, error) {
	verify, err := a.client.VerifyWebhookSignature(ctx, r, a.webhookID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: status %s", ErrBadSignature, verify.VerificationStatus)
	}

	var event struct {
		EventType string `json:"event_type"`
		Resource  struct {
			ID     string `json:"id"`
			Amount struct {
				Value string `json:"value"`
			} `json:"amount"`
		} `json:"resource"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook body: %w", err)
	}

	return &WebhookEvent{
		Type:             event.EventType,
		CaptureCompleted: event.EventType == captureCompletedEvent,
		PaymentID:        event.Resource.ID,
		Amount:           event.Resource.Amount.Value,
		// Sandbox webhooks only reach a sandbox-registered endpoint,
		// so the configured environment decides the partition.
		Live: a.live,
	}, nil
}

// ListTransactions queries the reporting API over the trailing
// lookback in 30-day windows. The reporting API uses its own bearer
// auth; a fresh token is fetched per call from the SDK client. A
// window with no transactions is not an error.
func (a *PayPalAdapter) ListTransactions(ctx context.Context, description string) ([]domain.NormalizedTransaction, error) {
	token, err := a.client.GetAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reporting access token: %w", err)
	}

	var out []domain.NormalizedTransaction
	end := time.Now().UTC()
	for start := end.Add(-reportingLookback); start.Before(end); start = start.Add(reportingWindow) {
		windowEnd := start.Add(reportingWindow)
		if windowEnd.After(end) {
			windowEnd = end
		}

		txns, err := a.searchWindow(ctx, token.Token, start, windowEnd)
		if err != nil {
			return nil, err
		}
		for _, t := range txns {
			if t.TransactionInfo.TransactionSubject != description {
				continue
			}
			amount, _ := domain.NormalizeAmount(t.TransactionInfo.TransactionAmount.Value)
			out = append(out, domain.NormalizedTransaction{
				ID:       t.TransactionInfo.TransactionID,
				Amount:   amount,
				Currency: t.TransactionInfo.TransactionAmount.CurrencyCode,
				Date:     parsePayPalDate(t.TransactionInfo.TransactionInitiationDate),
				Email:    t.PayerInfo.EmailAddress,
			})
		}
	}
	return out, nil
}

type paypalTransaction struct {
	TransactionInfo struct {
		TransactionID     string `json:"transaction_id"`
		TransactionAmount struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"transaction_amount"`
		TransactionInitiationDate string `json:"transaction_initiation_date"`
		TransactionSubject        string `json:"transaction_subject"`
	} `json:"transaction_info"`
	PayerInfo struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer_info"`
}

// searchWindow pulls every page of one reporting window. A busy
// window can exceed the 500-item page, so the page parameter is
// walked until total_pages is exhausted.
func (a *PayPalAdapter) searchWindow(ctx context.Context, token string, start, end time.Time) ([]paypalTransaction, error) {
	var all []paypalTransaction
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("start_date", start.Format(time.RFC3339))
		q.Set("end_date", end.Format(time.RFC3339))
		q.Set("fields", "transaction_info,payer_info")
		q.Set("page_size", "500")
		q.Set("page", strconv.Itoa(page))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/v1/reporting/transactions?%s", a.client.APIBase, q.Encode()), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("reporting request failed: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &domain.ProcessorAPIError{StatusCode: resp.StatusCode, Message: "transaction search failed"}
		}

		var body struct {
			TransactionDetails []paypalTransaction `json:"transaction_details"`
			TotalPages         int                 `json:"total_pages"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction search response: %w", err)
		}

		all = append(all, body.TransactionDetails...)
		if page >= body.TotalPages {
			return all, nil
		}
	}
}

func paypalOrderResource(order *paypal.Order) *domain.PaymentResource {
	res := &domain.PaymentResource{
		ID:     order.ID,
		Status: string(order.Status),
	}
	if order.Payer != nil {
		res.PayerEmail = order.Payer.EmailAddress
	}
	if len(order.PurchaseUnits) > 0 && order.PurchaseUnits[0].Amount != nil {
		if v, ok := domain.NormalizeAmount(order.PurchaseUnits[0].Amount.Value); ok {
			res.Amount = v
		}
	}
	return res
}

// The reporting API renders offsets without a colon, which RFC3339
// rejects.
func parsePayPalDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func wrapPayPalErr(err error) error {
	if pErr, ok := err.(*paypal.ErrorResponse); ok {
		status := 0
		if pErr.Response != nil {
			status = pErr.Response.StatusCode
		}
		return &domain.ProcessorAPIError{StatusCode: status, Message: pErr.Message, Err: err}
	}
	return &domain.ProcessorAPIError{Message: err.Error(), Err: err}
}
