package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/order"
	"github.com/corray333/backend-labs/payment/internal/service/models/orderitem"
	"github.com/jackc/pgx/v5"
)

// OrderDal represents order data access layer model
type OrderDal struct {
	Id                   int64
	UserId               int64
	DeliveryAddress      string
	SubtotalCents        int64
	DiscountCents        int64
	TaxCents             int64
	ShippingCents        int64
	TotalPriceCents      int64
	TotalPriceCurrency   string
	Status               string
	IsPaid               bool
	PaidAt               *time.Time
	IsDelivered          bool
	DeliveredAt          *time.Time
	PaymentTxnId         *string
	PaymentGatewayStatus *string
	PaymentResultAt      *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ToModel converts OrderDal to service layer Order model
func (o *OrderDal) ToModel() (*order.Order, error) {
	cur, err := currency.ParseCurrency(o.TotalPriceCurrency)
	if err != nil {
		return nil, err
	}

	model := &order.Order{
		ID:                 o.Id,
		UserID:             o.UserId,
		DeliveryAddress:    o.DeliveryAddress,
		SubtotalCents:      o.SubtotalCents,
		DiscountCents:      o.DiscountCents,
		TaxCents:           o.TaxCents,
		ShippingCents:      o.ShippingCents,
		TotalPriceCents:    o.TotalPriceCents,
		TotalPriceCurrency: cur,
		Status:             order.Status(o.Status),
		IsPaid:             o.IsPaid,
		PaidAt:             o.PaidAt,
		IsDelivered:        o.IsDelivered,
		DeliveredAt:        o.DeliveredAt,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
		OrderItems:         []orderitem.OrderItem{},
	}

	if o.PaymentTxnId != nil {
		model.PaymentResult = &order.PaymentResult{
			TransactionID: *o.PaymentTxnId,
		}
		if o.PaymentGatewayStatus != nil {
			model.PaymentResult.GatewayStatus = *o.PaymentGatewayStatus
		}
		if o.PaymentResultAt != nil {
			model.PaymentResult.UpdatedAt = *o.PaymentResultAt
		}
	}

	return model, nil
}

var orderColumns = []string{
	"id",
	"user_id",
	"delivery_address",
	"subtotal_cents",
	"discount_cents",
	"tax_cents",
	"shipping_cents",
	"total_price_cents",
	"total_price_currency",
	"status",
	"is_paid",
	"paid_at",
	"is_delivered",
	"delivered_at",
	"payment_txn_id",
	"payment_gateway_status",
	"payment_result_at",
	"created_at",
	"updated_at",
}

type OrderRepository struct {
	conn postgres.Querier
}

func NewOrderRepository(conn postgres.Querier) *OrderRepository {
	return &OrderRepository{
		conn: conn,
	}
}

// Get retrieves a single order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	query, args, err := sq.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"id": orderID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var dal OrderDal
	err = r.conn.QueryRow(ctx, query, args...).Scan(
		&dal.Id,
		&dal.UserId,
		&dal.DeliveryAddress,
		&dal.SubtotalCents,
		&dal.DiscountCents,
		&dal.TaxCents,
		&dal.ShippingCents,
		&dal.TotalPriceCents,
		&dal.TotalPriceCurrency,
		&dal.Status,
		&dal.IsPaid,
		&dal.PaidAt,
		&dal.IsDelivered,
		&dal.DeliveredAt,
		&dal.PaymentTxnId,
		&dal.PaymentGatewayStatus,
		&dal.PaymentResultAt,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, iorderrepo.ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	return dal.ToModel()
}

// MarkPaidIfUnpaid performs the paid transition as one conditional update.
// The is_paid guard in the WHERE clause is what makes the transition safe
// under a race between the synchronous payment call and the webhook: only one
// of them matches the row.
func (r *OrderRepository) MarkPaidIfUnpaid(
	ctx context.Context,
	orderID int64,
	paidAt time.Time,
	transactionID string,
	gatewayStatus string,
) (bool, error) {
	query, args, err := sq.Update("orders").
		Set("is_paid", true).
		Set("paid_at", paidAt).
		Set("status", order.StatusPaid.String()).
		Set("payment_txn_id", transactionID).
		Set("payment_gateway_status", gatewayStatus).
		Set("payment_result_at", paidAt).
		Set("updated_at", paidAt).
		Where(sq.Eq{"id": orderID}).
		Where(sq.Eq{"is_paid": false}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// SetProcessingResult records a non-terminal attempt outcome on the order. The
// is_paid guard keeps a late failure or processing event from moving a paid
// order backward.
func (r *OrderRepository) SetProcessingResult(
	ctx context.Context,
	orderID int64,
	status order.Status,
	transactionID string,
	gatewayStatus string,
) error {
	now := time.Now()

	builder := sq.Update("orders").
		Set("status", status.String()).
		Set("payment_gateway_status", gatewayStatus).
		Set("payment_result_at", now).
		Set("updated_at", now).
		Where(sq.Eq{"id": orderID}).
		Where(sq.Eq{"is_paid": false})

	if transactionID != "" {
		builder = builder.Set("payment_txn_id", transactionID)
	}

	query, args, err := builder.PlaceholderFormat(sq.Dollar).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set order processing result: %w", err)
	}

	return nil
}
