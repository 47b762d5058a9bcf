package webhookhandler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/backend-labs/payment/internal/gateway"
)

// SignatureHeader carries the gateway's payload signature.
const SignatureHeader = "Gateway-Signature"

// maxPayloadBytes bounds the webhook body read.
const maxPayloadBytes = 1 << 20

// service is an interface for the service layer.
type service interface {
	HandleGatewayEvent(ctx context.Context, event *gateway.Event) error
}

// HandleWebhook verifies and applies a gateway webhook event. The signature
// is checked against the exact raw bytes before anything is parsed; a payload
// that fails verification causes no state change at all.
func HandleWebhook(
	w http.ResponseWriter,
	r *http.Request,
	service service,
	secret string,
	tolerance time.Duration,
) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "failed to read payload", http.StatusBadRequest)
		slog.Error("Error reading webhook payload", "error", err)

		return
	}

	if err := gateway.VerifyWebhookSignature(payload, r.Header.Get(SignatureHeader), secret, tolerance); err != nil {
		http.Error(w, "signature verification failed", http.StatusBadRequest)
		slog.Warn("Webhook signature verification failed", "error", err)

		return
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		http.Error(w, "malformed event payload", http.StatusBadRequest)
		slog.Error("Error parsing webhook event", "error", err)

		return
	}

	if err := service.HandleGatewayEvent(r.Context(), event); err != nil {
		// Non-2xx makes the gateway redeliver, which is what we want when
		// the event was not durably handled.
		http.Error(w, "failed to handle event", http.StatusInternalServerError)
		slog.Error("Error handling webhook event", "error", err, "event_id", event.ID)

		return
	}

	w.WriteHeader(http.StatusOK)
}
