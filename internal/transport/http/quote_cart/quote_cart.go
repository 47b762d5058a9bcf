package quotecart

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/corray333/backend-labs/payment/internal/service/services/pricingsvc"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	Quote(items []pricingsvc.CartItem, couponCode, destination string) pricingsvc.Totals
}

// itemInQuoteRequest represents a cart line in a quote request.
type itemInQuoteRequest struct {
	UnitPriceCents int64 `json:"unitPriceCents" validate:"gt=0"`
	Quantity       int   `json:"quantity"       validate:"gt=0"`
}

// quoteCartRequest represents a cart quote request.
type quoteCartRequest struct {
	Items       []itemInQuoteRequest `json:"items"       validate:"required,min=1,dive"`
	CouponCode  string               `json:"couponCode"`
	Destination string               `json:"destination"`
}

// Validate validates the quote request.
func (r *quoteCartRequest) Validate() error {
	return validator.New().Struct(r)
}

// QuoteCart handles the cart quote request. The same engine prices carts here
// and orders at creation time, so the preview always matches the amount a
// payment will later be validated against.
func QuoteCart(w http.ResponseWriter, r *http.Request, service service) {
	req := quoteCartRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error decoding request body for cart quote", "error", err)

		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Error("Error validating request body for cart quote", "error", err)

		return
	}

	items := make([]pricingsvc.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = pricingsvc.CartItem{
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		}
	}

	totals := service.Quote(items, req.CouponCode, req.Destination)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(totals); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		slog.Error("Error sending response for cart quote", "error", err)
	}
}
