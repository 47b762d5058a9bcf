package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types this service acts on. Anything else is acknowledged
// without effect so the gateway stops redelivering it.
const (
	EventIntentSucceeded  = "payment_intent.succeeded"
	EventIntentFailed     = "payment_intent.payment_failed"
	EventIntentProcessing = "payment_intent.processing"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside tolerance")
)

// Event is a verified, parsed gateway webhook event.
type Event struct {
	ID     string
	Type   string
	Intent *Intent
}

type eventPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object intentPayload `json:"object"`
	} `json:"data"`
}

// VerifyWebhookSignature checks the gateway signature header against the raw
// payload bytes. The header format is "t=<unix>,v1=<hex hmac>" where the hmac
// is SHA-256 over "<unix>.<payload>" keyed with the webhook signing secret.
// Payloads must never be parsed before this check passes.
func VerifyWebhookSignature(payload []byte, header, secret string, tolerance time.Duration) error {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, v)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return ErrInvalidSignature
	}

	if tolerance > 0 {
		age := time.Since(time.Unix(timestamp, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// ParseEvent decodes a verified webhook payload into a typed Event. Only the
// recognized payment_intent types carry a decoded Intent; any other event
// type yields the envelope alone, so an event whose data object is not a
// payment intent still parses and can be acknowledged.
func ParseEvent(payload []byte) (*Event, error) {
	var ev eventPayload
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode webhook event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("webhook event missing id or type")
	}

	event := &Event{
		ID:   ev.ID,
		Type: ev.Type,
	}

	switch ev.Type {
	case EventIntentSucceeded, EventIntentFailed, EventIntentProcessing:
	default:
		return event, nil
	}

	raw, err := json.Marshal(ev.Data.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode intent object: %w", err)
	}

	event.Intent, err = intentFromPayload(ev.Data.Object, raw)
	if err != nil {
		return nil, err
	}

	return event, nil
}
