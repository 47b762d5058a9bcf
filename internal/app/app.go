package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corray333/backend-labs/payment/internal/dal/postgres"
	"github.com/corray333/backend-labs/payment/internal/dal/rabbitmq"
	"github.com/corray333/backend-labs/payment/internal/dal/redis"
	outboxrepo "github.com/corray333/backend-labs/payment/internal/dal/repositories/outbox/postgres"
	"github.com/corray333/backend-labs/payment/internal/gateway"
	"github.com/corray333/backend-labs/payment/internal/otel"
	"github.com/corray333/backend-labs/payment/internal/service/services/paymentsvc"
	"github.com/corray333/backend-labs/payment/internal/service/services/pricingsvc"
	httptransport "github.com/corray333/backend-labs/payment/internal/transport/http"
	outboxworker "github.com/corray333/backend-labs/payment/internal/worker/outbox"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	paymentSvc     *paymentsvc.PaymentService
	pricingSvc     *pricingsvc.PricingService
	transport      *httptransport.HTTPTransport
	outboxWorker   *outboxworker.Worker
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	redisClient    *redis.Client
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()
	redisClient := redis.MustNewClient()

	mustDeclareQueues(rabbitClient)

	gatewayClient := gateway.NewHTTPClient(gateway.Config{
		BaseURL:    viper.GetString("gateway.base_url"),
		SecretKey:  os.Getenv("GATEWAY_SECRET_KEY"),
		Timeout:    viper.GetDuration("gateway.timeout"),
		MaxRetries: uint64(viper.GetInt("gateway.max_retries")),
	})

	pricingSvc := pricingsvc.NewPricingService(pricingsvc.MustConfigFromViper())

	paymentSvc := paymentsvc.MustNewPaymentService(
		paymentsvc.WithPostgresClient(postgresClient),
		paymentsvc.WithGatewayClient(gatewayClient),
		paymentsvc.WithEventCache(redisClient),
		paymentsvc.WithReturnURL(viper.GetString("gateway.return_url")),
	)

	transport := httptransport.NewHTTPTransport(paymentSvc, pricingSvc)
	transport.RegisterRoutes()

	outboxWorker := outboxworker.NewWorker(
		outboxrepo.NewOutboxRepository(postgresClient.Pool()),
		rabbitClient,
	)

	return &App{
		paymentSvc:     paymentSvc,
		pricingSvc:     pricingSvc,
		transport:      transport,
		outboxWorker:   outboxWorker,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		redisClient:    redisClient,
		otelController: otelController,
	}
}

func mustDeclareQueues(client *rabbitmq.Client) {
	for _, name := range []string{
		paymentsvc.QueueOrderPaid,
		paymentsvc.QueuePaymentFailed,
	} {
		if _, err := client.DeclareQueue(rabbitmq.DeclareQueueConfig{
			Name:    name,
			Durable: true,
		}); err != nil {
			panic("failed to declare queue " + name + ": " + err.Error())
		}
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go a.outboxWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	cancelWorker()
	a.outboxWorker.Stop()
	slog.Info("Outbox worker stopped")

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	if err := a.redisClient.Close(); err != nil {
		slog.Error("Redis connection close error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Trace provider shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
