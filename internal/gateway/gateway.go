package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
)

// Outcome is the interpreted result of a payment intent. It is assigned once
// at the gateway boundary so the rest of the service never branches on raw
// gateway status strings.
type Outcome string

const (
	OutcomeSucceeded      Outcome = "succeeded"
	OutcomeRequiresAction Outcome = "requires_action"
	OutcomeProcessing     Outcome = "processing"
	OutcomeFailed         Outcome = "failed"
)

// ParseOutcome maps a gateway intent status string to an Outcome. Statuses the
// gateway may add later are treated as failures rather than silently ignored.
func ParseOutcome(status string) Outcome {
	switch status {
	case "succeeded":
		return OutcomeSucceeded
	case "requires_action", "requires_confirmation":
		return OutcomeRequiresAction
	case "processing":
		return OutcomeProcessing
	default:
		return OutcomeFailed
	}
}

// Intent is a gateway-side payment intent.
type Intent struct {
	ID             string
	Outcome        Outcome
	ClientSecret   string
	AmountCents    int64
	Currency       currency.Currency
	FailureMessage string
	OrderID        int64
	UserID         int64
	Raw            json.RawMessage
}

// PaymentMethod carries display-only card attributes. Raw card data never
// reaches this service.
type PaymentMethod struct {
	ID        string
	Type      string
	CardBrand string
	CardLast4 string
}

// CreateIntentParams describes a single charge attempt. OrderID and UserID are
// sent as intent metadata; the webhook path relies on them to correlate an
// event back to the order.
type CreateIntentParams struct {
	AmountCents     int64
	Currency        currency.Currency
	PaymentMethodID string
	OrderID         int64
	UserID          int64
	ReturnURL       string
}

// Error is a classified gateway-side failure. Message is safe to surface to
// the caller; Raw is retained on the payment record for audit.
type Error struct {
	Code      string
	Message   string
	Retryable bool
	Raw       json.RawMessage
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "gateway: " + e.Message
	}

	return "gateway: request failed"
}

// AsError extracts a *Error from err if one is present.
func AsError(err error) (*Error, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr, true
	}

	return nil, false
}

// Client is the payment gateway boundary. It is constructed once at startup
// from config and injected; there is no package-level client state.
type Client interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
}
