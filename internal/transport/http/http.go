package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/corray333/backend-labs/payment/internal/gateway"
	"github.com/corray333/backend-labs/payment/internal/service/models/payment"
	"github.com/corray333/backend-labs/payment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/payment/internal/service/services/pricingsvc"
	listpayments "github.com/corray333/backend-labs/payment/internal/transport/http/list_payments"
	processpayment "github.com/corray333/backend-labs/payment/internal/transport/http/process_payment"
	quotecart "github.com/corray333/backend-labs/payment/internal/transport/http/quote_cart"
	webhookhandler "github.com/corray333/backend-labs/payment/internal/transport/http/webhook"
	"github.com/corray333/backend-labs/payment/pkg/http/middleware/auth"
	tracemw "github.com/corray333/backend-labs/payment/pkg/http/middleware/trace"
	"github.com/corray333/backend-labs/payment/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
)

type paymentService interface {
	ProcessPayment(
		ctx context.Context,
		params paymentsvc.ProcessPaymentParams,
	) (*paymentsvc.ProcessPaymentResult, error)
	HandleGatewayEvent(ctx context.Context, event *gateway.Event) error
	GetPayments(ctx context.Context, filter *payment.QueryPaymentsModel) ([]payment.Payment, error)
}

type pricingService interface {
	Quote(items []pricingsvc.CartItem, couponCode, destination string) pricingsvc.Totals
}

type HTTPTransport struct {
	server           *http.Server
	router           *chi.Mux
	payments         paymentService
	pricing          pricingService
	webhookSecret    string
	webhookTolerance time.Duration
}

func NewHTTPTransport(payments paymentService, pricing pricingService) *HTTPTransport {
	router := newRouter()
	server := newServer(router)

	tolerance := viper.GetDuration("gateway.webhook_tolerance")
	if tolerance == 0 {
		tolerance = 5 * time.Minute
	}

	return &HTTPTransport{
		server:           server,
		router:           router,
		payments:         payments,
		pricing:          pricing,
		webhookSecret:    os.Getenv("GATEWAY_WEBHOOK_SECRET"),
		webhookTolerance: tolerance,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport. The webhook
// route stays outside the auth group: it authenticates with the gateway
// signature over the raw body, not a bearer token.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/api", func(r chi.Router) {
		r.Post("/cart/quote", h.quoteCart)
		r.Post("/payment/webhook", h.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(auth.NewAuthMiddleware())
			r.Post("/payment/process", h.processPayment)
			r.Get("/payments", h.listPayments)
		})
	})
}

func (h *HTTPTransport) processPayment(w http.ResponseWriter, r *http.Request) {
	processpayment.ProcessPayment(w, r, h.payments)
}

func (h *HTTPTransport) handleWebhook(w http.ResponseWriter, r *http.Request) {
	webhookhandler.HandleWebhook(w, r, h.payments, h.webhookSecret, h.webhookTolerance)
}

func (h *HTTPTransport) quoteCart(w http.ResponseWriter, r *http.Request) {
	quotecart.QuoteCart(w, r, h.pricing)
}

func (h *HTTPTransport) listPayments(w http.ResponseWriter, r *http.Request) {
	listpayments.ListPayments(w, r, h.payments)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(tracemw.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
