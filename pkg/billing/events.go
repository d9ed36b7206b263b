package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
)

// Stripe event types the reconciler acts on.
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventInvoicePaid          = "invoice.payment_succeeded"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
)

// Event is a verified webhook event. The concrete types are
// CheckoutCompleted, InvoicePaid, InvoicePaymentFailed, SubscriptionDeleted
// and UnhandledEvent.
type Event interface {
	Meta() EventMeta
	isEvent()
}

type EventMeta struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func (m EventMeta) Meta() EventMeta { return m }
func (EventMeta) isEvent()          {}

type CheckoutCompleted struct {
	EventMeta
	SessionID              string
	UserID                 uuid.UUID
	ProviderSubscriptionID string
	CustomerID             string
}

type InvoicePaid struct {
	EventMeta
	InvoiceID              string
	ProviderSubscriptionID string
	AmountPaid             int64
	Currency               string
	BillingReason          string
}

type InvoicePaymentFailed struct {
	EventMeta
	InvoiceID              string
	ProviderSubscriptionID string
}

type SubscriptionDeleted struct {
	EventMeta
	ProviderSubscriptionID string
	CanceledAt             *time.Time
}

// UnhandledEvent is any event type the reconciler ignores.
type UnhandledEvent struct {
	EventMeta
}

// Billing reasons that select the notification sent for a paid invoice.
const (
	BillingReasonSubscriptionCreate = "subscription_create"
	BillingReasonSubscriptionCycle  = "subscription_cycle"
)

type checkoutSessionObject struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	ClientReferenceID string `json:"client_reference_id"`
}

type invoiceObject struct {
	ID            string `json:"id"`
	AmountPaid    int64  `json:"amount_paid"`
	Currency      string `json:"currency"`
	BillingReason string `json:"billing_reason"`
	Subscription  string `json:"subscription"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []struct {
			Subscription string `json:"subscription"`
			Parent       struct {
				SubscriptionItemDetails struct {
					Subscription string `json:"subscription"`
				} `json:"subscription_item_details"`
			} `json:"parent"`
		} `json:"data"`
	} `json:"lines"`
}

// subscriptionID finds the subscription an invoice belongs to. Line items
// are authoritative; the invoice-level fields cover older API versions.
func (inv invoiceObject) subscriptionID() string {
	if len(inv.Lines.Data) > 0 {
		line := inv.Lines.Data[0]
		if id := line.Parent.SubscriptionItemDetails.Subscription; id != "" {
			return id
		}
		if line.Subscription != "" {
			return line.Subscription
		}
	}
	if id := inv.Parent.SubscriptionDetails.Subscription; id != "" {
		return id
	}
	return inv.Subscription
}

type subscriptionObject struct {
	ID         string `json:"id"`
	Customer   string `json:"customer"`
	CanceledAt *int64 `json:"canceled_at"`
}

// DecodeEvent converts a verified Stripe event into a typed Event.
func DecodeEvent(ev *stripe.Event) (Event, error) {
	if ev == nil || ev.ID == "" {
		return nil, fmt.Errorf("%w: missing event id", ErrMalformedEvent)
	}
	meta := EventMeta{ID: ev.ID, Type: string(ev.Type), CreatedAt: time.Unix(ev.Created, 0).UTC()}

	var raw json.RawMessage
	if ev.Data != nil {
		raw = ev.Data.Raw
	}

	switch meta.Type {
	case EventCheckoutCompleted:
		var obj checkoutSessionObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		userID, _ := uuid.Parse(strings.TrimSpace(obj.ClientReferenceID))
		return CheckoutCompleted{
			EventMeta:              meta,
			SessionID:              obj.ID,
			UserID:                 userID,
			ProviderSubscriptionID: obj.Subscription,
			CustomerID:             obj.Customer,
		}, nil

	case EventInvoicePaid:
		var obj invoiceObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		return InvoicePaid{
			EventMeta:              meta,
			InvoiceID:              obj.ID,
			ProviderSubscriptionID: obj.subscriptionID(),
			AmountPaid:             obj.AmountPaid,
			Currency:               obj.Currency,
			BillingReason:          obj.BillingReason,
		}, nil

	case EventInvoicePaymentFailed:
		var obj invoiceObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		return InvoicePaymentFailed{
			EventMeta:              meta,
			InvoiceID:              obj.ID,
			ProviderSubscriptionID: obj.subscriptionID(),
		}, nil

	case EventSubscriptionDeleted:
		var obj subscriptionObject
		if err := decodeObject(raw, &obj); err != nil {
			return nil, err
		}
		e := SubscriptionDeleted{EventMeta: meta, ProviderSubscriptionID: obj.ID}
		if obj.CanceledAt != nil && *obj.CanceledAt > 0 {
			t := time.Unix(*obj.CanceledAt, 0).UTC()
			e.CanceledAt = &t
		}
		return e, nil
	}

	return UnhandledEvent{EventMeta: meta}, nil
}

func decodeObject(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data object", ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil
}
