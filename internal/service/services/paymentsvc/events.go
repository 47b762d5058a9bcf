package paymentsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/payment/internal/gateway"
	"github.com/corray333/backend-labs/payment/internal/service/models/order"
	"github.com/corray333/backend-labs/payment/internal/service/models/outbox"
	"github.com/google/uuid"
)

// Queues payment lifecycle events are published to.
const (
	QueueOrderPaid     = "payments.order.paid"
	QueuePaymentFailed = "payments.payment.failed"

	outboxMaxRetries = 10
)

// orderPaidEvent is published exactly once per order, from the transaction
// that performed the paid transition.
type orderPaidEvent struct {
	EventID       string    `json:"eventId"`
	OrderID       int64     `json:"orderId"`
	UserID        int64     `json:"userId"`
	AmountCents   int64     `json:"amountCents"`
	Currency      string    `json:"currency"`
	TransactionID string    `json:"transactionId"`
	PaidAt        time.Time `json:"paidAt"`
}

type paymentFailedEvent struct {
	EventID     string    `json:"eventId"`
	OrderID     int64     `json:"orderId"`
	UserID      int64     `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason,omitempty"`
	FailedAt    time.Time `json:"failedAt"`
}

func newPaymentID() string {
	return uuid.NewString()
}

func (s *PaymentService) enqueueOrderPaidEvent(
	ctx context.Context,
	repo ioutboxrepo.IOutboxRepository,
	ord *order.Order,
	intent *gateway.Intent,
	at time.Time,
) error {
	payload, err := json.Marshal(orderPaidEvent{
		EventID:       uuid.NewString(),
		OrderID:       ord.ID,
		UserID:        ord.UserID,
		AmountCents:   ord.TotalPriceCents,
		Currency:      ord.TotalPriceCurrency.String(),
		TransactionID: intent.ID,
		PaidAt:        at,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order paid event: %w", err)
	}

	return s.enqueue(ctx, repo, QueueOrderPaid, payload, at)
}

func (s *PaymentService) enqueuePaymentFailedEvent(
	ctx context.Context,
	repo ioutboxrepo.IOutboxRepository,
	ord *order.Order,
	intent *gateway.Intent,
	at time.Time,
) error {
	payload, err := json.Marshal(paymentFailedEvent{
		EventID:     uuid.NewString(),
		OrderID:     ord.ID,
		UserID:      ord.UserID,
		AmountCents: ord.TotalPriceCents,
		Currency:    ord.TotalPriceCurrency.String(),
		Reason:      intent.FailureMessage,
		FailedAt:    at,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payment failed event: %w", err)
	}

	return s.enqueue(ctx, repo, QueuePaymentFailed, payload, at)
}

func (s *PaymentService) enqueue(
	ctx context.Context,
	repo ioutboxrepo.IOutboxRepository,
	queue string,
	payload []byte,
	at time.Time,
) error {
	err := repo.Insert(ctx, outbox.OutboxMessage{
		QueueName:   queue,
		RoutingKey:  queue,
		Payload:     payload,
		ContentType: "application/json",
		MaxRetries:  outboxMaxRetries,
		CreatedAt:   at,
		UpdatedAt:   at,
		NextRetryAt: at,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue outbox message: %w", err)
	}

	return nil
}
