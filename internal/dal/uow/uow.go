package uow

import (
	"context"

	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	orderrepo "github.com/corray333/backend-labs/payment/internal/dal/repositories/order/postgres"
	orderitemrepo "github.com/corray333/backend-labs/payment/internal/dal/repositories/orderitem/postgres"
	outboxrepo "github.com/corray333/backend-labs/payment/internal/dal/repositories/outbox/postgres"
	paymentrepo "github.com/corray333/backend-labs/payment/internal/dal/repositories/payment/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// unitOfWork groups the order, order item, payment and outbox repositories
// over a single pgx transaction, so an order mutation, its payment upsert and
// the outbox event commit or roll back together.
type unitOfWork struct {
	pool          *pgxpool.Pool
	tx            pgx.Tx
	orderRepo     iorderrepo.IOrderRepository
	orderItemRepo iorderitemrepo.IOrderItemRepository
	paymentRepo   ipaymentrepo.IPaymentRepository
	outboxRepo    ioutboxrepo.IOutboxRepository
}

func NewUnitOfWork(client *postgres.Client) *unitOfWork {
	pool := client.Pool()

	return &unitOfWork{
		pool:          pool,
		orderRepo:     orderrepo.NewOrderRepository(pool),
		orderItemRepo: orderitemrepo.NewOrderItemRepository(pool),
		paymentRepo:   paymentrepo.NewPaymentRepository(pool),
		outboxRepo:    outboxrepo.NewOutboxRepository(pool),
	}
}

func (u *unitOfWork) OrderRepository() iorderrepo.IOrderRepository {
	return u.orderRepo
}

func (u *unitOfWork) OrderItemRepository() iorderitemrepo.IOrderItemRepository {
	return u.orderItemRepo
}

func (u *unitOfWork) PaymentRepository() ipaymentrepo.IPaymentRepository {
	return u.paymentRepo
}

func (u *unitOfWork) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return u.outboxRepo
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return err
	}

	u.tx = tx
	u.orderRepo = orderrepo.NewOrderRepository(tx)
	u.orderItemRepo = orderitemrepo.NewOrderItemRepository(tx)
	u.paymentRepo = paymentrepo.NewPaymentRepository(tx)
	u.outboxRepo = outboxrepo.NewOutboxRepository(tx)

	return nil
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Commit(ctx)
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	return u.tx.Rollback(ctx)
}
