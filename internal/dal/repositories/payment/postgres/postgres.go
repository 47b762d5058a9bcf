package postgresrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentDal represents payment data access layer model
type PaymentDal struct {
	Id            string
	OrderId       int64
	UserId        int64
	AmountCents   int64
	Currency      string
	Method        string
	TransactionId *string
	Status        string
	CardBrand     *string
	CardLast4     *string
	RawResponse   []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToModel converts PaymentDal to service layer Payment model
func (p *PaymentDal) ToModel() (*payment.Payment, error) {
	cur, err := currency.ParseCurrency(p.Currency)
	if err != nil {
		return nil, err
	}
	status, err := payment.ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}

	model := &payment.Payment{
		ID:          p.Id,
		OrderID:     p.OrderId,
		UserID:      p.UserId,
		AmountCents: p.AmountCents,
		Currency:    cur,
		Method:      p.Method,
		Status:      status,
		RawResponse: p.RawResponse,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.TransactionId != nil {
		model.TransactionID = *p.TransactionId
	}
	if p.CardBrand != nil {
		model.CardBrand = *p.CardBrand
	}
	if p.CardLast4 != nil {
		model.CardLast4 = *p.CardLast4
	}

	return model, nil
}

var paymentColumns = []string{
	"id",
	"order_id",
	"user_id",
	"amount_cents",
	"currency",
	"method",
	"transaction_id",
	"status",
	"card_brand",
	"card_last4",
	"raw_response",
	"created_at",
	"updated_at",
}

type PaymentRepository struct {
	conn postgres.Querier
}

func NewPaymentRepository(conn postgres.Querier) *PaymentRepository {
	return &PaymentRepository{
		conn: conn,
	}
}

// Upsert writes the single payment record for an order. The ON CONFLICT guard
// refuses to downgrade a record that already reached a terminal status, and
// the unique index on transaction_id rejects a gateway transaction that was
// already recorded elsewhere (surfaced as ErrDuplicateTransaction).
func (r *PaymentRepository) Upsert(ctx context.Context, p payment.Payment) (*payment.Payment, error) {
	query, args, err := sq.Insert("payments").
		Columns(
			"id",
			"order_id",
			"user_id",
			"amount_cents",
			"currency",
			"method",
			"transaction_id",
			"status",
			"card_brand",
			"card_last4",
			"raw_response",
			"created_at",
			"updated_at",
		).
		Values(
			p.ID,
			p.OrderID,
			p.UserID,
			p.AmountCents,
			p.Currency,
			p.Method,
			nullable(p.TransactionID),
			p.Status,
			nullable(p.CardBrand),
			nullable(p.CardLast4),
			[]byte(p.RawResponse),
			p.CreatedAt,
			p.UpdatedAt,
		).
		Suffix(`ON CONFLICT (order_id) DO UPDATE SET
			amount_cents = EXCLUDED.amount_cents,
			currency = EXCLUDED.currency,
			method = EXCLUDED.method,
			transaction_id = COALESCE(EXCLUDED.transaction_id, payments.transaction_id),
			status = EXCLUDED.status,
			card_brand = COALESCE(EXCLUDED.card_brand, payments.card_brand),
			card_last4 = COALESCE(EXCLUDED.card_last4, payments.card_last4),
			raw_response = EXCLUDED.raw_response,
			updated_at = EXCLUDED.updated_at
		WHERE payments.status NOT IN ('succeeded', 'refunded', 'cancelled')`).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build upsert query: %w", err)
	}

	if err := r.execUpsert(ctx, query, args); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "payments_transaction_id_key" {
			return nil, ipaymentrepo.ErrDuplicateTransaction
		}

		return nil, fmt.Errorf("failed to upsert payment: %w", err)
	}

	// Read back: when the terminal-status guard suppressed the update, the
	// stored record is the one callers must see.
	return r.GetByOrder(ctx, p.OrderID)
}

// execUpsert runs the insert inside a savepoint when the repository operates
// within a transaction. A transaction_id unique violation must not abort the
// caller's transaction: the caller still has to read the surviving record
// back on the same connection.
func (r *PaymentRepository) execUpsert(ctx context.Context, query string, args []any) error {
	tx, ok := r.conn.(pgx.Tx)
	if !ok {
		_, err := r.conn.Exec(ctx, query, args...)

		return err
	}

	nested, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	if _, err := nested.Exec(ctx, query, args...); err != nil {
		_ = nested.Rollback(ctx)

		return err
	}

	return nested.Commit(ctx)
}

// GetByOrder retrieves the payment record for an order.
func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID int64) (*payment.Payment, error) {
	query, args, err := sq.Select(paymentColumns...).
		From("payments").
		Where(sq.Eq{"order_id": orderID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	row := r.conn.QueryRow(ctx, query, args...)
	model, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query payment: %w", err)
	}

	return model, nil
}

// Query retrieves payments based on filter criteria
func (r *PaymentRepository) Query(
	ctx context.Context,
	filter *payment.QueryPaymentsModel,
) ([]payment.Payment, error) {
	builder := sq.Select(paymentColumns...).From("payments")

	if len(filter.OrderIds) > 0 {
		builder = builder.Where(sq.Eq{"order_id": filter.OrderIds})
	}
	if len(filter.UserIds) > 0 {
		builder = builder.Where(sq.Eq{"user_id": filter.UserIds})
	}
	if len(filter.Statuses) > 0 {
		builder = builder.Where(sq.Eq{"status": filter.Statuses})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.
		OrderBy("created_at DESC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var result []payment.Payment
	for rows.Next() {
		model, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		result = append(result, *model)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var dal PaymentDal
	err := row.Scan(
		&dal.Id,
		&dal.OrderId,
		&dal.UserId,
		&dal.AmountCents,
		&dal.Currency,
		&dal.Method,
		&dal.TransactionId,
		&dal.Status,
		&dal.CardBrand,
		&dal.CardLast4,
		&dal.RawResponse,
		&dal.CreatedAt,
		&dal.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return dal.ToModel()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
