package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/orderitem"
)

// OrderItemDal represents order item data access layer model
type OrderItemDal struct {
	Id             int64
	OrderId        int64
	ProductId      int64
	ProductTitle   string
	Quantity       int
	UnitPriceCents int64
	PriceCurrency  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ToModel converts OrderItemDal to service layer OrderItem model
func (o *OrderItemDal) ToModel() (*orderitem.OrderItem, error) {
	cur, err := currency.ParseCurrency(o.PriceCurrency)
	if err != nil {
		return nil, err
	}

	return &orderitem.OrderItem{
		ID:             o.Id,
		OrderID:        o.OrderId,
		ProductID:      o.ProductId,
		ProductTitle:   o.ProductTitle,
		Quantity:       o.Quantity,
		UnitPriceCents: o.UnitPriceCents,
		PriceCurrency:  cur,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}, nil
}

type OrderItemRepository struct {
	conn postgres.Querier
}

func NewOrderItemRepository(conn postgres.Querier) *OrderItemRepository {
	return &OrderItemRepository{
		conn: conn,
	}
}

// ListByOrderIDs retrieves the line items for the given orders.
func (r *OrderItemRepository) ListByOrderIDs(
	ctx context.Context,
	orderIDs []int64,
) ([]orderitem.OrderItem, error) {
	if len(orderIDs) == 0 {
		return []orderitem.OrderItem{}, nil
	}

	query, args, err := sq.Select(
		"id",
		"order_id",
		"product_id",
		"product_title",
		"quantity",
		"unit_price_cents",
		"price_currency",
		"created_at",
		"updated_at",
	).
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var result []orderitem.OrderItem
	for rows.Next() {
		var dal OrderItemDal
		err := rows.Scan(
			&dal.Id,
			&dal.OrderId,
			&dal.ProductId,
			&dal.ProductTitle,
			&dal.Quantity,
			&dal.UnitPriceCents,
			&dal.PriceCurrency,
			&dal.CreatedAt,
			&dal.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		model, err := dal.ToModel()
		if err != nil {
			return nil, fmt.Errorf("failed to convert order item dal to model: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}
