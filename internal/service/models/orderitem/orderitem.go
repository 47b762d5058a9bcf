package orderitem

import (
	"time"

	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
)

// OrderItem is a line-item snapshot taken at order-creation time. Unit price is
// frozen here so later catalog changes cannot affect a placed order.
type OrderItem struct {
	ID             int64             `json:"id"`
	OrderID        int64             `json:"orderId"`
	ProductID      int64             `json:"productId"`
	ProductTitle   string            `json:"productTitle"`
	Quantity       int               `json:"quantity"`
	UnitPriceCents int64             `json:"unitPriceCents"`
	PriceCurrency  currency.Currency `json:"priceCurrency"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
