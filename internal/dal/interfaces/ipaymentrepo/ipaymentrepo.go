package ipaymentrepo

import (
	"context"
	"errors"

	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
)

// ErrDuplicateTransaction is returned when the gateway transaction id was
// already recorded, by this order's row or any other. The write that lost the
// race treats it as a no-op.
var ErrDuplicateTransaction = errors.New("gateway transaction already recorded")

// IPaymentRepository is an interface for the payment postgres repository.
type IPaymentRepository interface {
	// Upsert writes the single payment record for an order, keyed on the
	// unique order id. A record that already reached a terminal status is
	// never downgraded; in that case the stored record is returned
	// unchanged.
	Upsert(ctx context.Context, p payment.Payment) (*payment.Payment, error)

	GetByOrder(ctx context.Context, orderID int64) (*payment.Payment, error)

	Query(ctx context.Context, filter *payment.QueryPaymentsModel) ([]payment.Payment, error)
}
