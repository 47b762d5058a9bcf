package order

import (
	"time"

	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/orderitem"
)

// Order represents an order moving through the payment lifecycle.
//
// TotalPriceCents is computed once at order creation and never changes
// afterwards; every payment attempt is validated against it. IsPaid flips
// false to true exactly once, through the conditional update exposed by the
// order repository.
type Order struct {
	ID                 int64                 `json:"id"`
	UserID             int64                 `json:"userId"`
	DeliveryAddress    string                `json:"deliveryAddress"`
	SubtotalCents      int64                 `json:"subtotalCents"`
	DiscountCents      int64                 `json:"discountCents"`
	TaxCents           int64                 `json:"taxCents"`
	ShippingCents      int64                 `json:"shippingCents"`
	TotalPriceCents    int64                 `json:"totalPriceCents"`
	TotalPriceCurrency currency.Currency     `json:"totalPriceCurrency"`
	Status             Status                `json:"status"`
	IsPaid             bool                  `json:"isPaid"`
	PaidAt             *time.Time            `json:"paidAt,omitempty"`
	IsDelivered        bool                  `json:"isDelivered"`
	DeliveredAt        *time.Time            `json:"deliveredAt,omitempty"`
	PaymentResult      *PaymentResult        `json:"paymentResult,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
	OrderItems         []orderitem.OrderItem `json:"orderItems"`
}

// PaymentResult is the gateway-side summary stored on the order.
type PaymentResult struct {
	TransactionID string    `json:"transactionId"`
	GatewayStatus string    `json:"gatewayStatus"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
