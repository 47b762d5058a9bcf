package processpayment

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/payment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/payment/pkg/http/middleware/auth"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	ProcessPayment(
		ctx context.Context,
		params paymentsvc.ProcessPaymentParams,
	) (*paymentsvc.ProcessPaymentResult, error)
}

// processPaymentRequest represents a payment request. Amount is in minor
// units (cents) and must match the order's stored total exactly.
type processPaymentRequest struct {
	OrderID         int64  `json:"orderId"         validate:"gt=0"`
	Amount          int64  `json:"amount"          validate:"gt=0"`
	Currency        string `json:"currency"        validate:"required"`
	PaymentMethodID string `json:"paymentMethodId" validate:"required"`
}

// Validate validates the payment request.
func (r *processPaymentRequest) Validate() error {
	return validator.New().Struct(r)
}

// ProcessPayment handles the process payment request.
func ProcessPayment(w http.ResponseWriter, r *http.Request, service service) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)

		return
	}

	req := processPaymentRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for process payment", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for process payment", "error", err)

		return
	}

	result, err := service.ProcessPayment(r.Context(), paymentsvc.ProcessPaymentParams{
		OrderID:         req.OrderID,
		UserID:          userID,
		AmountCents:     req.Amount,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		status := statusForError(err)
		http.Error(w, err.Error(), status)

		if status == http.StatusInternalServerError {
			slog.Error("Error processing payment", "error", err, "order_id", req.OrderID)
		} else {
			slog.Warn("Payment rejected", "error", err, "order_id", req.OrderID, "status", status)
		}

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Error sending response for process payment", "error", err)
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, paymentsvc.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, paymentsvc.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, paymentsvc.ErrInvalidRequest),
		errors.Is(err, paymentsvc.ErrAmountMismatch),
		errors.Is(err, paymentsvc.ErrAlreadyPaid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
