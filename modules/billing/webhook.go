package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// MaxWebhookBodySize bounds Stripe webhook payloads.
const MaxWebhookBodySize = 1 << 20

// stripeWebhook reads the raw body for signature verification. Client
// errors answer 400 so Stripe stops retrying; anything else answers 500 so
// the delivery is retried.
func (h *handlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = handler.JSONError(handler.ErrRequestEntityTooLarge).Render(w, r)
			return
		}
		_ = handler.JSONError(handler.ErrBadRequest).Render(w, r)
		return
	}

	result, err := h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if billing.IsClientError(err) {
			h.logger.WarnContext(r.Context(), "webhook event rejected", logger.Error(err))
			_ = fail(handler.NewHTTPError(http.StatusBadRequest, classify(err).Key)).Render(w, r)
			return
		}
		_ = fail(err).Render(w, r)
		return
	}

	_ = handler.JSON(result).Render(w, r)
}
