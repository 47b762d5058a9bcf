package iorderrepo

import (
	"context"
	"errors"
	"time"

	"github.com/corray333/backend-labs/payment/internal/service/models/order"
)

// ErrOrderNotFound is returned when the referenced order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// IOrderRepository is an interface for the order postgres repository.
type IOrderRepository interface {
	Get(ctx context.Context, orderID int64) (*order.Order, error)

	// MarkPaidIfUnpaid flips the paid flag as a single conditional update.
	// It returns true only for the caller that actually performed the
	// transition; a racing caller observes false and must treat the order
	// as already paid.
	MarkPaidIfUnpaid(
		ctx context.Context,
		orderID int64,
		paidAt time.Time,
		transactionID string,
		gatewayStatus string,
	) (bool, error)

	// SetProcessingResult records a non-terminal payment attempt outcome.
	// It never touches an order that is already paid.
	SetProcessingResult(
		ctx context.Context,
		orderID int64,
		status order.Status,
		transactionID string,
		gatewayStatus string,
	) error
}
