package iorderitemrepo

import (
	"context"

	"github.com/corray333/backend-labs/payment/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for the order item postgres repository.
type IOrderItemRepository interface {
	ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error)
}
