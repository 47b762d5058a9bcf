package paymentsvc

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/payment/internal/gateway"
	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/order"
	"github.com/corray333/backend-labs/payment/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/payment/internal/service/models/outbox"
	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory stand-in for the Postgres-backed unit of work. It
// reproduces the two storage-level guards the service relies on: the
// conditional paid update and the terminal-status payment upsert.
type memStore struct {
	mu       sync.Mutex
	orders   map[int64]*order.Order
	items    map[int64][]orderitem.OrderItem
	payments map[int64]*payment.Payment
	outbox   []outbox.OutboxMessage
}

func newMemStore(orders ...*order.Order) *memStore {
	s := &memStore{
		orders:   map[int64]*order.Order{},
		items:    map[int64][]orderitem.OrderItem{},
		payments: map[int64]*payment.Payment{},
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}

	return s
}

func (s *memStore) Begin(ctx context.Context) error    { return nil }
func (s *memStore) Commit(ctx context.Context) error   { return nil }
func (s *memStore) Rollback(ctx context.Context) error { return nil }

func (s *memStore) OrderRepository() iorderrepo.IOrderRepository             { return s }
func (s *memStore) OrderItemRepository() iorderitemrepo.IOrderItemRepository { return s }
func (s *memStore) PaymentRepository() ipaymentrepo.IPaymentRepository       { return s }
func (s *memStore) OutboxRepository() ioutboxrepo.IOutboxRepository          { return s }

func (s *memStore) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok {
		return nil, iorderrepo.ErrOrderNotFound
	}
	cp := *ord

	return &cp, nil
}

func (s *memStore) MarkPaidIfUnpaid(
	ctx context.Context,
	orderID int64,
	paidAt time.Time,
	transactionID string,
	gatewayStatus string,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok || ord.IsPaid {
		return false, nil
	}

	ord.IsPaid = true
	ord.PaidAt = &paidAt
	ord.Status = order.StatusPaid
	ord.PaymentResult = &order.PaymentResult{
		TransactionID: transactionID,
		GatewayStatus: gatewayStatus,
		UpdatedAt:     paidAt,
	}

	return true, nil
}

func (s *memStore) SetProcessingResult(
	ctx context.Context,
	orderID int64,
	status order.Status,
	transactionID string,
	gatewayStatus string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ord, ok := s.orders[orderID]
	if !ok || ord.IsPaid {
		return nil
	}

	ord.Status = status
	ord.PaymentResult = &order.PaymentResult{
		TransactionID: transactionID,
		GatewayStatus: gatewayStatus,
		UpdatedAt:     time.Now(),
	}

	return nil
}

func (s *memStore) ListByOrderIDs(ctx context.Context, orderIDs []int64) ([]orderitem.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []orderitem.OrderItem
	for _, id := range orderIDs {
		out = append(out, s.items[id]...)
	}

	return out, nil
}

func (s *memStore) Upsert(ctx context.Context, p payment.Payment) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.TransactionID != "" {
		for orderID, existing := range s.payments {
			if orderID != p.OrderID && existing.TransactionID == p.TransactionID {
				return nil, ipaymentrepo.ErrDuplicateTransaction
			}
		}
	}

	if existing, ok := s.payments[p.OrderID]; ok && existing.Status.Terminal() {
		cp := *existing

		return &cp, nil
	}

	cp := p
	s.payments[p.OrderID] = &cp
	out := cp

	return &out, nil
}

func (s *memStore) GetByOrder(ctx context.Context, orderID int64) (*payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.payments[orderID]
	if !ok {
		return nil, nil
	}
	cp := *existing

	return &cp, nil
}

func (s *memStore) Query(ctx context.Context, filter *payment.QueryPaymentsModel) ([]payment.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []payment.Payment
	for _, p := range s.payments {
		out = append(out, *p)
	}

	return out, nil
}

func (s *memStore) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = int64(len(s.outbox) + 1)
	s.outbox = append(s.outbox, msg)

	return nil
}

func (s *memStore) GetPendingMessages(ctx context.Context, limit int) ([]outbox.OutboxMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]outbox.OutboxMessage(nil), s.outbox...), nil
}

func (s *memStore) Delete(ctx context.Context, id int64) error { return nil }

func (s *memStore) UpdateRetry(
	ctx context.Context,
	id int64,
	retryCount int,
	lastError string,
	nextRetryAt time.Time,
) error {
	return nil
}

func (s *memStore) outboxMessages(queue string) []outbox.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []outbox.OutboxMessage
	for _, msg := range s.outbox {
		if msg.QueueName == queue {
			out = append(out, msg)
		}
	}

	return out
}

// fakeGateway scripts gateway responses per test.
type fakeGateway struct {
	mu            sync.Mutex
	createIntent  func(params gateway.CreateIntentParams) (*gateway.Intent, error)
	createCalls   int
	paymentMethod *gateway.PaymentMethod
}

func (g *fakeGateway) CreateIntent(ctx context.Context, params gateway.CreateIntentParams) (*gateway.Intent, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()

	return g.createIntent(params)
}

func (g *fakeGateway) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*gateway.PaymentMethod, error) {
	if g.paymentMethod == nil {
		return nil, errors.New("payment method lookup failed")
	}

	return g.paymentMethod, nil
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.createCalls
}

// fakeEventCache is an in-process SetNX.
type fakeEventCache struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeEventCache() *fakeEventCache {
	return &fakeEventCache{seen: map[string]bool{}}
}

func (c *fakeEventCache) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.seen[eventID] {
		return false, nil
	}
	c.seen[eventID] = true

	return true, nil
}

func (c *fakeEventCache) ForgetEvent(ctx context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.seen, eventID)

	return nil
}

func testOrder() *order.Order {
	return &order.Order{
		ID:                 42,
		UserID:             7,
		SubtotalCents:      6000,
		TaxCents:           450,
		ShippingCents:      500,
		TotalPriceCents:    6950,
		TotalPriceCurrency: currency.CurrencyUSD,
		Status:             order.StatusPending,
	}
}

func succeededIntent(id string, ord *order.Order) *gateway.Intent {
	return &gateway.Intent{
		ID:          id,
		Outcome:     gateway.OutcomeSucceeded,
		AmountCents: ord.TotalPriceCents,
		Currency:    ord.TotalPriceCurrency,
		OrderID:     ord.ID,
		UserID:      ord.UserID,
		Raw:         json.RawMessage(`{"id":"` + id + `"}`),
	}
}

func newTestService(store *memStore, gw gateway.Client) *PaymentService {
	return MustNewPaymentService(
		WithUnitOfWorkFactory(func() unitOfWork { return store }),
		WithGatewayClient(gw),
		WithEventCache(newFakeEventCache()),
	)
}

func validParams() ProcessPaymentParams {
	return ProcessPaymentParams{
		OrderID:         42,
		UserID:          7,
		AmountCents:     6950,
		Currency:        "USD",
		PaymentMethodID: "pm_123",
	}
}

func TestProcessPayment_Success(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	gw := &fakeGateway{
		createIntent: func(params gateway.CreateIntentParams) (*gateway.Intent, error) {
			return succeededIntent("txn_1", ord), nil
		},
		paymentMethod: &gateway.PaymentMethod{ID: "pm_123", CardBrand: "visa", CardLast4: "4242"},
	}
	svc := newTestService(store, gw)

	result, err := svc.ProcessPayment(context.Background(), validParams())

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.False(t, result.RequiresAction)

	require.NotNil(t, result.Order)
	assert.True(t, result.Order.IsPaid)
	assert.Equal(t, order.StatusPaid, result.Order.Status)
	require.NotNil(t, result.Order.PaidAt)

	require.NotNil(t, result.Payment)
	assert.Equal(t, payment.StatusSucceeded, result.Payment.Status)
	assert.Equal(t, "txn_1", result.Payment.TransactionID)
	assert.Equal(t, "visa", result.Payment.CardBrand)
	assert.Equal(t, "4242", result.Payment.CardLast4)

	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
	assert.Empty(t, store.outboxMessages(QueuePaymentFailed))
}

func TestProcessPayment_Unauthenticated(t *testing.T) {
	svc := newTestService(newMemStore(testOrder()), &fakeGateway{})

	params := validParams()
	params.UserID = 0

	_, err := svc.ProcessPayment(context.Background(), params)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProcessPayment_InvalidRequest(t *testing.T) {
	svc := newTestService(newMemStore(testOrder()), &fakeGateway{})

	tests := []struct {
		name   string
		mutate func(*ProcessPaymentParams)
	}{
		{name: "missing order id", mutate: func(p *ProcessPaymentParams) { p.OrderID = 0 }},
		{name: "non-positive amount", mutate: func(p *ProcessPaymentParams) { p.AmountCents = 0 }},
		{name: "missing currency", mutate: func(p *ProcessPaymentParams) { p.Currency = "" }},
		{name: "unsupported currency", mutate: func(p *ProcessPaymentParams) { p.Currency = "XBT" }},
		{name: "missing payment method", mutate: func(p *ProcessPaymentParams) { p.PaymentMethodID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := svc.ProcessPayment(context.Background(), params)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestProcessPayment_OrderNotFound(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeGateway{})

	_, err := svc.ProcessPayment(context.Background(), validParams())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestProcessPayment_AmountMismatch(t *testing.T) {
	store := newMemStore(testOrder())
	gw := &fakeGateway{}
	svc := newTestService(store, gw)

	params := validParams()
	params.AmountCents = 6949

	_, err := svc.ProcessPayment(context.Background(), params)

	assert.ErrorIs(t, err, ErrAmountMismatch)
	// The gateway is never contacted and nothing is recorded.
	assert.Equal(t, 0, gw.calls())
	stored, err := store.GetByOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestProcessPayment_CurrencyMismatch(t *testing.T) {
	gw := &fakeGateway{}
	svc := newTestService(newMemStore(testOrder()), gw)

	params := validParams()
	params.Currency = "EUR"

	_, err := svc.ProcessPayment(context.Background(), params)

	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Equal(t, 0, gw.calls())
}

func TestProcessPayment_AlreadyPaid(t *testing.T) {
	ord := testOrder()
	ord.IsPaid = true
	ord.Status = order.StatusPaid

	gw := &fakeGateway{}
	svc := newTestService(newMemStore(ord), gw)

	_, err := svc.ProcessPayment(context.Background(), validParams())

	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, 0, gw.calls())
}

func TestProcessPayment_CardDeclined(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	gw := &fakeGateway{
		createIntent: func(params gateway.CreateIntentParams) (*gateway.Intent, error) {
			return nil, &gateway.Error{
				Code:    "card_declined",
				Message: "Your card was declined.",
			}
		},
	}
	svc := newTestService(store, gw)

	result, err := svc.ProcessPayment(context.Background(), validParams())

	// A definitive decline is a result, not an error.
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Your card was declined.", result.Message)

	require.NotNil(t, result.Order)
	assert.False(t, result.Order.IsPaid)
	assert.Equal(t, order.StatusFailed, result.Order.Status)

	stored, err := store.GetByOrder(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusFailed, stored.Status)

	assert.Len(t, store.outboxMessages(QueuePaymentFailed), 1)
	assert.Empty(t, store.outboxMessages(QueueOrderPaid))
}

func TestProcessPayment_GatewayUnavailable(t *testing.T) {
	store := newMemStore(testOrder())
	gw := &fakeGateway{
		createIntent: func(params gateway.CreateIntentParams) (*gateway.Intent, error) {
			return nil, &gateway.Error{Code: "api_error", Retryable: true}
		},
	}
	svc := newTestService(store, gw)

	_, err := svc.ProcessPayment(context.Background(), validParams())

	require.Error(t, err)
	var gwErr *gateway.Error
	assert.ErrorAs(t, err, &gwErr)

	// The failed attempt is still recorded.
	stored, getErr := store.GetByOrder(context.Background(), 42)
	require.NoError(t, getErr)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusFailed, stored.Status)
}

func TestProcessPayment_RequiresAction(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	gw := &fakeGateway{
		createIntent: func(params gateway.CreateIntentParams) (*gateway.Intent, error) {
			return &gateway.Intent{
				ID:           "txn_3ds",
				Outcome:      gateway.OutcomeRequiresAction,
				ClientSecret: "cs_secret",
				AmountCents:  ord.TotalPriceCents,
				Currency:     ord.TotalPriceCurrency,
				OrderID:      ord.ID,
			}, nil
		},
	}
	svc := newTestService(store, gw)

	result, err := svc.ProcessPayment(context.Background(), validParams())

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, result.RequiresAction)
	assert.Equal(t, "cs_secret", result.ClientSecret)

	require.NotNil(t, result.Order)
	assert.False(t, result.Order.IsPaid)
	assert.Equal(t, order.StatusProcessing, result.Order.Status)

	require.NotNil(t, result.Payment)
	assert.Equal(t, payment.StatusPending, result.Payment.Status)

	// No terminal outcome yet, so no events either way.
	assert.Empty(t, store.outboxMessages(QueueOrderPaid))
	assert.Empty(t, store.outboxMessages(QueuePaymentFailed))
}

func webhookEvent(id, eventType string, intent *gateway.Intent) *gateway.Event {
	return &gateway.Event{ID: id, Type: eventType, Intent: intent}
}

func TestHandleGatewayEvent_MarksOrderPaid(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	event := webhookEvent("evt_1", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))

	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPaid)
	assert.Equal(t, order.StatusPaid, reloaded.Status)

	stored, err := store.GetByOrder(context.Background(), ord.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusSucceeded, stored.Status)

	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
}

func TestHandleGatewayEvent_DuplicateDelivery(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	event := webhookEvent("evt_1", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))

	// The second delivery changed nothing.
	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
}

func TestHandleGatewayEvent_RedeliveredWithNewEventID(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	// Same gateway transaction delivered under two distinct event ids. The
	// dedup cache misses, the storage guards still make it a no-op.
	first := webhookEvent("evt_1", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))
	second := webhookEvent("evt_2", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), first))
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), second))

	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
}

func TestHandleGatewayEvent_UnknownOrderIsAcknowledged(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &fakeGateway{})

	intent := &gateway.Intent{ID: "txn_x", Outcome: gateway.OutcomeSucceeded, OrderID: 999}
	event := webhookEvent("evt_x", gateway.EventIntentSucceeded, intent)

	assert.NoError(t, svc.HandleGatewayEvent(context.Background(), event))
}

func TestHandleGatewayEvent_MissingOrderMetadata(t *testing.T) {
	store := newMemStore(testOrder())
	svc := newTestService(store, &fakeGateway{})

	event := webhookEvent("evt_x", gateway.EventIntentSucceeded, &gateway.Intent{ID: "txn_x"})

	assert.NoError(t, svc.HandleGatewayEvent(context.Background(), event))
	assert.Empty(t, store.outboxMessages(QueueOrderPaid))
}

func TestHandleGatewayEvent_IgnoredEventType(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	event := webhookEvent("evt_x", "charge.refund.updated", succeededIntent("txn_1", ord))

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))

	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPaid)
}

func TestHandleGatewayEvent_FailedPayment(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	intent := &gateway.Intent{
		ID:             "txn_1",
		Outcome:        gateway.OutcomeFailed,
		AmountCents:    ord.TotalPriceCents,
		Currency:       ord.TotalPriceCurrency,
		FailureMessage: "insufficient funds",
		OrderID:        ord.ID,
	}
	event := webhookEvent("evt_f", gateway.EventIntentFailed, intent)

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))

	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsPaid)
	assert.Equal(t, order.StatusFailed, reloaded.Status)

	stored, err := store.GetByOrder(context.Background(), ord.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusFailed, stored.Status)

	assert.Len(t, store.outboxMessages(QueuePaymentFailed), 1)
}

func TestHandleGatewayEvent_FailedAfterPaidEmitsNoEvent(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	paid := webhookEvent("evt_1", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), paid))

	lateFailure := &gateway.Intent{
		ID:             "txn_1",
		Outcome:        gateway.OutcomeFailed,
		AmountCents:    ord.TotalPriceCents,
		Currency:       ord.TotalPriceCurrency,
		FailureMessage: "card declined",
		OrderID:        ord.ID,
	}
	failed := webhookEvent("evt_2", gateway.EventIntentFailed, lateFailure)
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), failed))

	// The order stays paid, the payment record keeps its terminal status,
	// and no failure event reaches downstream consumers.
	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsPaid)
	assert.Equal(t, order.StatusPaid, reloaded.Status)

	stored, err := store.GetByOrder(context.Background(), ord.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, payment.StatusSucceeded, stored.Status)

	assert.Empty(t, store.outboxMessages(QueuePaymentFailed))
	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
}

func TestHandleGatewayEvent_FailedEventLeavesCancelledOrder(t *testing.T) {
	ord := testOrder()
	ord.Status = order.StatusCancelled
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	intent := &gateway.Intent{
		ID:          "txn_1",
		Outcome:     gateway.OutcomeFailed,
		AmountCents: ord.TotalPriceCents,
		Currency:    ord.TotalPriceCurrency,
		OrderID:     ord.ID,
	}
	event := webhookEvent("evt_c", gateway.EventIntentFailed, intent)

	require.NoError(t, svc.HandleGatewayEvent(context.Background(), event))

	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, reloaded.Status)
}

func TestHandleGatewayEvent_SucceededAfterPaidIsNoOp(t *testing.T) {
	ord := testOrder()
	store := newMemStore(ord)
	svc := newTestService(store, &fakeGateway{})

	first := webhookEvent("evt_1", gateway.EventIntentSucceeded, succeededIntent("txn_1", ord))
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), first))

	paidOnce, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	firstPaidAt := *paidOnce.PaidAt

	late := webhookEvent("evt_2", gateway.EventIntentSucceeded, succeededIntent("txn_other", ord))
	require.NoError(t, svc.HandleGatewayEvent(context.Background(), late))

	reloaded, err := store.Get(context.Background(), ord.ID)
	require.NoError(t, err)
	assert.Equal(t, firstPaidAt, *reloaded.PaidAt)
	assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
}

// The synchronous path and the webhook path race for the same order. Exactly
// one of them performs the paid transition and exactly one order-paid event is
// emitted, no matter who wins.
func TestProcessPayment_RacesWebhook_PaidExactlyOnce(t *testing.T) {
	for i := 0; i < 20; i++ {
		ord := testOrder()
		store := newMemStore(ord)
		gw := &fakeGateway{
			createIntent: func(params gateway.CreateIntentParams) (*gateway.Intent, error) {
				return succeededIntent("txn_race", ord), nil
			},
		}
		svc := newTestService(store, gw)

		event := webhookEvent("evt_race", gateway.EventIntentSucceeded, succeededIntent("txn_race", ord))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.ProcessPayment(context.Background(), validParams())
		}()
		go func() {
			defer wg.Done()
			_ = svc.HandleGatewayEvent(context.Background(), event)
		}()
		wg.Wait()

		reloaded, err := store.Get(context.Background(), ord.ID)
		require.NoError(t, err)
		assert.True(t, reloaded.IsPaid)

		stored, err := store.GetByOrder(context.Background(), ord.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, payment.StatusSucceeded, stored.Status)

		assert.Len(t, store.outboxMessages(QueueOrderPaid), 1)
	}
}

func TestGetPayments_EmptyResultIsNotNil(t *testing.T) {
	svc := newTestService(newMemStore(), &fakeGateway{})

	payments, err := svc.GetPayments(context.Background(), &payment.QueryPaymentsModel{})

	require.NoError(t, err)
	assert.NotNil(t, payments)
	assert.Empty(t, payments)
}
