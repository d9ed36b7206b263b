package billing

import "time"

const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultEventDedupTTL  = 72 * time.Hour
)

// Config holds checkout redirects and webhook processing settings.
type Config struct {
	SuccessURL     string        `env:"BILLING_SUCCESS_URL" envDefault:"http://localhost:8080/billing/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL      string        `env:"BILLING_CANCEL_URL" envDefault:"http://localhost:8080/billing/cancel"`
	WebhookTimeout time.Duration `env:"BILLING_WEBHOOK_TIMEOUT" envDefault:"10s"`
	EventDedupTTL  time.Duration `env:"BILLING_EVENT_DEDUP_TTL" envDefault:"72h"`
}
