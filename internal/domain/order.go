package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusFinal   OrderStatus = "final"
)

// Sentinel payment ids. PENDING marks an order whose payment has not
// completed; check and waitlist orders never touch a processor.
const (
	PaymentIDPending  = "PENDING"
	PaymentIDCheck    = "check"
	PaymentIDWaitlist = "waitlist"
)

type Order struct {
	OrderID     string      `json:"order_id" dynamodbav:"order_id"`
	Status      OrderStatus `json:"status" dynamodbav:"status"`
	PaymentID   string      `json:"payment_id" dynamodbav:"payment_id"`
	Total       float64     `json:"total" dynamodbav:"total"`
	Fees        float64     `json:"fees" dynamodbav:"fees"`
	Donation    float64     `json:"donation" dynamodbav:"donation"`
	Deposit     float64     `json:"deposit" dynamodbav:"deposit"`
	People      []Person    `json:"people" dynamodbav:"people"`
	IsTestOrder bool        `json:"is_test_order" dynamodbav:"is_test_order"`
	Environment string      `json:"environment" dynamodbav:"environment"`
	CreatedAt   time.Time   `json:"created_at" dynamodbav:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
}

// Person is one attendee on an order. People[0] is the purchaser.
type Person struct {
	First   string `json:"first" dynamodbav:"first"`
	Last    string `json:"last" dynamodbav:"last"`
	Email   string `json:"email" dynamodbav:"email"`
	Phone   string `json:"phone" dynamodbav:"phone"`
	Address string `json:"address" dynamodbav:"address"`
}

// Purchaser returns the payer of record. An order with no people is
// never valid, but callers should not panic on one.
func (o *Order) Purchaser() Person {
	if len(o.People) == 0 {
		return Person{}
	}
	return o.People[0]
}

// PaymentResource is the normalized view of a processor-side order or
// payment intent. Capture fields are populated only after a capture
// completed; amounts are fixed 2-decimal strings.
type PaymentResource struct {
	ID            string
	Amount        string
	Status        string
	ClientSecret  string
	CaptureID     string
	CaptureAmount string
	PayerEmail    string
	Captured      bool
}

// NormalizedTransaction is the reconciliation view of one external
// ledger entry, independent of which processor produced it.
type NormalizedTransaction struct {
	ID       string    `json:"id"`
	Amount   string    `json:"amount"`
	Currency string    `json:"currency"`
	Date     time.Time `json:"date"`
	Email    string    `json:"email"`
}
