package listpayments

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
	"github.com/gorilla/schema"
)

type service interface {
	GetPayments(ctx context.Context, filter *payment.QueryPaymentsModel) ([]payment.Payment, error)
}

type queryPaymentsRequest struct {
	OrderIds []int64  `schema:"orderIds,omitempty"`
	UserIds  []int64  `schema:"userIds,omitempty"`
	Statuses []string `schema:"statuses,omitempty"`
	Limit    int      `schema:"limit,omitempty"`
	Offset   int      `schema:"offset,omitempty"`
}

func (q *queryPaymentsRequest) ToModel() *payment.QueryPaymentsModel {
	return &payment.QueryPaymentsModel{
		OrderIds: q.OrderIds,
		UserIds:  q.UserIds,
		Statuses: q.Statuses,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
}

func ListPayments(w http.ResponseWriter, r *http.Request, service service) {
	decoder := schema.NewDecoder()
	query := &queryPaymentsRequest{}
	err := decoder.Decode(query, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request", "error", err)

		return
	}

	payments, err := service.GetPayments(r.Context(), query.ToModel())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Error getting payments", "error", err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payments); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Error sending response", "error", err)
	}
}
