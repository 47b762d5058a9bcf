package payment

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
)

// Status is the payment record state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid payment status")

func (s Status) String() string {
	return string(s)
}

func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSucceeded, StatusFailed, StatusRefunded, StatusCancelled:
		return Status(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// Terminal reports whether the status admits no further forward transition
// through the payment flow.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusRefunded || s == StatusCancelled
}

// Payment is the single logical payment record for an order. Repeated attempts
// upsert the same row (unique order_id); TransactionID carries a unique sparse
// index so the same gateway transaction can never be recorded twice.
type Payment struct {
	ID            string            `json:"id"`
	OrderID       int64             `json:"orderId"`
	UserID        int64             `json:"userId"`
	AmountCents   int64             `json:"amountCents"`
	Currency      currency.Currency `json:"currency"`
	Method        string            `json:"method"`
	TransactionID string            `json:"transactionId,omitempty"`
	Status        Status            `json:"status"`
	CardBrand     string            `json:"cardBrand,omitempty"`
	CardLast4     string            `json:"cardLast4,omitempty"`
	RawResponse   json.RawMessage   `json:"-"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
