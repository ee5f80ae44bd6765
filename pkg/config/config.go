package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	Environment    string `envconfig:"ENVIRONMENT" default:"sandbox"` // sandbox | production
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	AWSRegion      string `envconfig:"AWS_REGION" default:"us-west-2"`
	OrderTableName string `envconfig:"ORDER_TABLE_NAME" default:"orders"`
	KafkaBrokers   string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`

	// Processor selection is made once at startup; all call sites see
	// only the adapter interface.
	PaymentProcessor string `envconfig:"PAYMENT_PROCESSOR" default:"paypal"` // paypal | stripe

	PayPalClientID  string `envconfig:"PAYPAL_CLIENT_ID"`
	PayPalSecret    string `envconfig:"PAYPAL_SECRET"`
	PayPalWebhookID string `envconfig:"PAYPAL_WEBHOOK_ID"`

	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`

	// Free-text correlation key stamped on every processor order and
	// matched against the processor ledger during reconciliation.
	EventDescription string `envconfig:"EVENT_DESCRIPTION" default:"Retreat Registration"`

	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	AlertEmailFrom string `envconfig:"ALERT_EMAIL_FROM"`
	AlertEmailTo   string `envconfig:"ALERT_EMAIL_TO"`

	ReconcileToken      string `envconfig:"RECONCILE_TOKEN"`
	ReconcileIntervalHr int    `envconfig:"RECONCILE_INTERVAL_HOURS" default:"24"` // 0 disables the timer

	WebhookRetryBaseMS   int `envconfig:"WEBHOOK_RETRY_BASE_MS" default:"500"`
	WebhookRetryAttempts int `envconfig:"WEBHOOK_RETRY_ATTEMPTS" default:"5"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.PaymentProcessor != "paypal" && cfg.PaymentProcessor != "stripe" {
		return nil, fmt.Errorf("unknown PAYMENT_PROCESSOR %q", cfg.PaymentProcessor)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
