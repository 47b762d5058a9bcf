package paymentsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderitemrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/iorderrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ioutboxrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/interfaces/ipaymentrepo"
	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	"github.com/corray333/backend-labs/payment/internal/dal/uow"
	"github.com/corray333/backend-labs/payment/internal/gateway"
	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/corray333/backend-labs/payment/internal/service/models/order"
	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
	"go.opentelemetry.io/otel"
)

// PaymentService drives orders through the payment state machine. Both the
// synchronous process-payment path and the webhook path funnel into the same
// applyOutcome transition, so the two cannot drift in behavior.
type PaymentService struct {
	newUOW    func() unitOfWork
	gateway   gateway.Client
	events    eventCache
	returnURL string
}

type unitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	OrderRepository() iorderrepo.IOrderRepository
	OrderItemRepository() iorderitemrepo.IOrderItemRepository
	PaymentRepository() ipaymentrepo.IPaymentRepository
	OutboxRepository() ioutboxrepo.IOutboxRepository
}

// eventCache is the best-effort webhook dedup fast path. The conditional
// update in the order repository stays the source of truth.
type eventCache interface {
	MarkEventSeen(ctx context.Context, eventID string) (bool, error)
	ForgetEvent(ctx context.Context, eventID string) error
}

// option is a function that configures the PaymentService.
type option func(*PaymentService)

// MustNewPaymentService creates a new PaymentService.
func MustNewPaymentService(opts ...option) *PaymentService {
	s := &PaymentService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.newUOW == nil {
		panic("payment service requires a unit of work factory")
	}
	if s.gateway == nil {
		panic("payment service requires a gateway client")
	}

	return s
}

// WithPostgresClient sets the Postgres client for the PaymentService.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPostgresClient(pgClient *postgres.Client) option {
	return func(s *PaymentService) {
		s.newUOW = func() unitOfWork {
			return uow.NewUnitOfWork(pgClient)
		}
	}
}

// WithUnitOfWorkFactory sets a custom unit of work factory.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWorkFactory(factory func() unitOfWork) option {
	return func(s *PaymentService) {
		s.newUOW = factory
	}
}

// WithGatewayClient sets the payment gateway client.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithGatewayClient(client gateway.Client) option {
	return func(s *PaymentService) {
		s.gateway = client
	}
}

// WithEventCache sets the webhook event dedup cache.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithEventCache(cache eventCache) option {
	return func(s *PaymentService) {
		s.events = cache
	}
}

// WithReturnURL sets the client return URL passed to the gateway.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithReturnURL(url string) option {
	return func(s *PaymentService) {
		s.returnURL = url
	}
}

// ProcessPaymentParams is the validated input of the synchronous payment path.
type ProcessPaymentParams struct {
	OrderID         int64
	UserID          int64
	AmountCents     int64
	Currency        string
	PaymentMethodID string
}

// ProcessPaymentResult is the definitive outcome returned to the caller.
type ProcessPaymentResult struct {
	Success        bool             `json:"success"`
	RequiresAction bool             `json:"requiresAction"`
	ClientSecret   string           `json:"clientSecret,omitempty"`
	Message        string           `json:"message,omitempty"`
	Order          *order.Order     `json:"order,omitempty"`
	Payment        *payment.Payment `json:"payment,omitempty"`
}

// ProcessPayment validates the request, charges the gateway and applies the
// resulting state transition. Validation failures are reported in a fixed
// order so each failure mode stays distinguishable.
func (s *PaymentService) ProcessPayment(
	ctx context.Context,
	params ProcessPaymentParams,
) (*ProcessPaymentResult, error) {
	ctx, span := otel.Tracer("paymentsvc").Start(ctx, "PaymentService.ProcessPayment")
	defer span.End()

	if params.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if params.OrderID == 0 || params.AmountCents <= 0 || params.Currency == "" || params.PaymentMethodID == "" {
		return nil, ErrInvalidRequest
	}

	claimedCurrency, err := currency.ParseCurrency(params.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	work := s.newUOW()

	ord, err := work.OrderRepository().Get(ctx, params.OrderID)
	if err != nil {
		if errors.Is(err, iorderrepo.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}

		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	// Tamper detection: compare in integer minor units, never floats. Even a
	// one-cent difference is rejected before the gateway is contacted.
	if params.AmountCents != ord.TotalPriceCents || claimedCurrency != ord.TotalPriceCurrency {
		slog.Warn("Payment amount mismatch, possible tampering",
			"order_id", ord.ID,
			"user_id", params.UserID,
			"claimed_cents", params.AmountCents,
			"expected_cents", ord.TotalPriceCents,
		)

		return nil, ErrAmountMismatch
	}

	if ord.IsPaid {
		return nil, ErrAlreadyPaid
	}

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		AmountCents:     ord.TotalPriceCents,
		Currency:        ord.TotalPriceCurrency,
		PaymentMethodID: params.PaymentMethodID,
		OrderID:         ord.ID,
		UserID:          params.UserID,
		ReturnURL:       s.returnURL,
	})
	if err != nil {
		return s.handleGatewayFailure(ctx, ord, params, err)
	}

	// Display attributes are best-effort: a lookup failure must not block
	// recording the payment.
	var method *gateway.PaymentMethod
	if method, err = s.gateway.GetPaymentMethod(ctx, params.PaymentMethodID); err != nil {
		slog.Warn("Failed to fetch payment method details", "error", err, "order_id", ord.ID)
		method = nil
	}

	applied, err := s.applyOutcome(ctx, ord, intent, params.UserID, params.PaymentMethodID, method)
	if err != nil {
		return nil, err
	}

	result := &ProcessPaymentResult{
		ClientSecret: intent.ClientSecret,
		Payment:      applied.payment,
	}

	switch intent.Outcome {
	case gateway.OutcomeSucceeded:
		result.Success = true
	case gateway.OutcomeRequiresAction, gateway.OutcomeProcessing:
		result.RequiresAction = true
		result.Message = "further action is required to complete the payment"
	default:
		result.Message = failureMessage(intent.FailureMessage)
	}

	result.Order, err = s.loadOrderWithItems(ctx, ord.ID)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// handleGatewayFailure records a failed attempt and translates the gateway
// error. Retryable failures (timeouts, 5xx) propagate as errors so the caller
// knows to retry; definitive declines come back as a failure result.
func (s *PaymentService) handleGatewayFailure(
	ctx context.Context,
	ord *order.Order,
	params ProcessPaymentParams,
	gatewayErr error,
) (*ProcessPaymentResult, error) {
	gwErr, ok := gateway.AsError(gatewayErr)
	if !ok {
		return nil, fmt.Errorf("failed to create payment intent: %w", gatewayErr)
	}

	failed := &gateway.Intent{
		Outcome:        gateway.OutcomeFailed,
		AmountCents:    ord.TotalPriceCents,
		Currency:       ord.TotalPriceCurrency,
		FailureMessage: gwErr.Message,
		Raw:            gwErr.Raw,
	}

	if _, err := s.applyOutcome(ctx, ord, failed, params.UserID, params.PaymentMethodID, nil); err != nil {
		slog.Error("Failed to record failed payment attempt", "error", err, "order_id", ord.ID)
	}

	if gwErr.Retryable {
		return nil, fmt.Errorf("gateway unavailable: %w", gwErr)
	}

	result := &ProcessPaymentResult{Message: failureMessage(gwErr.Message)}

	var err error
	if result.Order, err = s.loadOrderWithItems(ctx, ord.ID); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PaymentService) loadOrderWithItems(ctx context.Context, orderID int64) (*order.Order, error) {
	work := s.newUOW()

	ord, err := work.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}

	items, err := work.OrderItemRepository().ListByOrderIDs(ctx, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	ord.OrderItems = items

	return ord, nil
}

func failureMessage(gatewayMessage string) string {
	if gatewayMessage != "" {
		return gatewayMessage
	}

	return "payment was not successful"
}

// GetPayments retrieves payment records based on filter.
func (s *PaymentService) GetPayments(
	ctx context.Context,
	filter *payment.QueryPaymentsModel,
) ([]payment.Payment, error) {
	work := s.newUOW()

	payments, err := work.PaymentRepository().Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	if payments == nil {
		payments = []payment.Payment{}
	}

	return payments, nil
}

// allowedStatusChange permits re-recording the current status (a repeated
// processing or failed event refreshes the gateway result); anything else must
// be a legal lifecycle transition. This keeps a cancelled or refunded order
// from being dragged back into the payment flow by a stray gateway event.
func allowedStatusChange(from, to order.Status) bool {
	return from == to || order.CanTransition(from, to)
}

// paidTransition groups what applyOutcome reports back to its caller.
type paidTransition struct {
	payment     *payment.Payment
	transferred bool
}

// applyOutcome applies one gateway outcome to the order and its payment
// record inside a single transaction. It is the only place order/payment
// state changes, shared by ProcessPayment and HandleGatewayEvent.
func (s *PaymentService) applyOutcome(
	ctx context.Context,
	ord *order.Order,
	intent *gateway.Intent,
	userID int64,
	methodID string,
	method *gateway.PaymentMethod,
) (*paidTransition, error) {
	work := s.newUOW()

	if err := work.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = work.Rollback(ctx) }()

	now := time.Now()
	transition := &paidTransition{}

	var paymentStatus payment.Status
	switch intent.Outcome {
	case gateway.OutcomeSucceeded:
		performed, err := work.OrderRepository().MarkPaidIfUnpaid(
			ctx, ord.ID, now, intent.ID, string(intent.Outcome),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to mark order paid: %w", err)
		}
		transition.transferred = performed
		paymentStatus = payment.StatusSucceeded
	case gateway.OutcomeRequiresAction, gateway.OutcomeProcessing:
		if allowedStatusChange(ord.Status, order.StatusProcessing) {
			err := work.OrderRepository().SetProcessingResult(
				ctx, ord.ID, order.StatusProcessing, intent.ID, string(intent.Outcome),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to record processing attempt: %w", err)
			}
		}
		paymentStatus = payment.StatusPending
	default:
		if allowedStatusChange(ord.Status, order.StatusFailed) {
			err := work.OrderRepository().SetProcessingResult(
				ctx, ord.ID, order.StatusFailed, intent.ID, string(intent.Outcome),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to record failed attempt: %w", err)
			}
		}
		paymentStatus = payment.StatusFailed
	}

	record := payment.Payment{
		ID:            newPaymentID(),
		OrderID:       ord.ID,
		UserID:        userID,
		AmountCents:   ord.TotalPriceCents,
		Currency:      ord.TotalPriceCurrency,
		Method:        methodID,
		TransactionID: intent.ID,
		Status:        paymentStatus,
		RawResponse:   intent.Raw,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if method != nil {
		record.CardBrand = method.CardBrand
		record.CardLast4 = method.CardLast4
	}

	stored, err := work.PaymentRepository().Upsert(ctx, record)
	if err != nil {
		if errors.Is(err, ipaymentrepo.ErrDuplicateTransaction) {
			// A racing writer already recorded this gateway transaction.
			slog.Info("Gateway transaction already recorded, skipping",
				"order_id", ord.ID,
				"transaction_id", intent.ID,
			)

			stored, err = work.PaymentRepository().GetByOrder(ctx, ord.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load existing payment: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to upsert payment: %w", err)
		}
	}
	transition.payment = stored

	// The failure event fires only when the stored record actually reads
	// failed. A late failure that lost to a terminal record was refused by
	// the upsert, and downstream consumers must never see a failure for an
	// order that is paid.
	if transition.transferred {
		if err := s.enqueueOrderPaidEvent(ctx, work.OutboxRepository(), ord, intent, now); err != nil {
			return nil, err
		}
	} else if paymentStatus == payment.StatusFailed && stored != nil && stored.Status == payment.StatusFailed {
		if err := s.enqueuePaymentFailedEvent(ctx, work.OutboxRepository(), ord, intent, now); err != nil {
			return nil, err
		}
	}

	if err := work.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment transaction: %w", err)
	}

	return transition, nil
}

// HandleGatewayEvent applies a verified webhook event. Events for unknown
// types or unknown orders are acknowledged without effect; duplicates are
// no-ops. Only a genuine handling failure returns an error, which makes the
// gateway redeliver.
func (s *PaymentService) HandleGatewayEvent(ctx context.Context, event *gateway.Event) error {
	ctx, span := otel.Tracer("paymentsvc").Start(ctx, "PaymentService.HandleGatewayEvent")
	defer span.End()

	switch event.Type {
	case gateway.EventIntentSucceeded, gateway.EventIntentFailed, gateway.EventIntentProcessing:
	default:
		slog.Info("Ignoring webhook event type", "event_id", event.ID, "type", event.Type)

		return nil
	}

	if event.Intent == nil || event.Intent.OrderID == 0 {
		slog.Warn("Webhook event carries no order metadata, acknowledging",
			"event_id", event.ID,
			"type", event.Type,
		)

		return nil
	}

	marked, err := s.markEventSeen(ctx, event.ID)
	if err == nil && !marked {
		slog.Info("Webhook event already processed, skipping", "event_id", event.ID)

		return nil
	}

	if err := s.applyGatewayEvent(ctx, event); err != nil {
		// Let the gateway redeliver: drop the dedup key so the retry is not
		// mistaken for a duplicate.
		if marked && s.events != nil {
			if forgetErr := s.events.ForgetEvent(ctx, event.ID); forgetErr != nil {
				slog.Error("Failed to clear event dedup key", "error", forgetErr, "event_id", event.ID)
			}
		}

		return err
	}

	return nil
}

func (s *PaymentService) applyGatewayEvent(ctx context.Context, event *gateway.Event) error {
	work := s.newUOW()

	ord, err := work.OrderRepository().Get(ctx, event.Intent.OrderID)
	if err != nil {
		if errors.Is(err, iorderrepo.ErrOrderNotFound) {
			slog.Warn("Webhook event references unknown order, acknowledging",
				"event_id", event.ID,
				"order_id", event.Intent.OrderID,
			)

			return nil
		}

		return fmt.Errorf("failed to load order for webhook event: %w", err)
	}

	if ord.IsPaid && event.Type == gateway.EventIntentSucceeded {
		// Duplicate delivery, or the synchronous path won the race.
		slog.Info("Order already paid, webhook event is a no-op",
			"event_id", event.ID,
			"order_id", ord.ID,
		)

		return nil
	}

	if _, err := s.applyOutcome(ctx, ord, event.Intent, ord.UserID, "", nil); err != nil {
		return fmt.Errorf("failed to apply webhook event: %w", err)
	}

	return nil
}

// markEventSeen consults the dedup cache. Cache trouble is logged and treated
// as "not seen": the storage-level guards make a duplicate pass harmless.
func (s *PaymentService) markEventSeen(ctx context.Context, eventID string) (bool, error) {
	if s.events == nil {
		return false, errors.New("no event cache configured")
	}

	first, err := s.events.MarkEventSeen(ctx, eventID)
	if err != nil {
		slog.Warn("Event dedup cache unavailable", "error", err, "event_id", eventID)

		return false, err
	}

	return first, nil
}
