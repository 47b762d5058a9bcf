package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/corray333/backend-labs/payment/internal/service/models/currency"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// HTTPClient talks to the gateway's form-encoded REST API.
type HTTPClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	maxRetries uint64
}

// Config configures the gateway HTTP client.
type Config struct {
	BaseURL    string
	SecretKey  string
	Timeout    time.Duration
	MaxRetries uint64
}

// NewHTTPClient creates a gateway client. The timeout bounds every call,
// including retries of transient failures.
func NewHTTPClient(cfg Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
	}
}

// intentPayload mirrors the gateway's intent object wire format.
type intentPayload struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	ClientSecret string            `json:"client_secret"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
	LastError    *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type paymentMethodPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Card *struct {
		Brand string `json:"brand"`
		Last4 string `json:"last4"`
	} `json:"card"`
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent creates and confirms a payment intent in a single call. The
// uuid idempotency key makes a client-side retry of the same call safe.
func (c *HTTPClient) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", strings.ToLower(params.Currency.String()))
	form.Set("payment_method", params.PaymentMethodID)
	form.Set("confirm", "true")
	form.Set("metadata[order_id]", strconv.FormatInt(params.OrderID, 10))
	form.Set("metadata[user_id]", strconv.FormatInt(params.UserID, 10))
	if params.ReturnURL != "" {
		form.Set("return_url", params.ReturnURL)
	}

	body, err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, uuid.NewString())
	if err != nil {
		return nil, err
	}

	return parseIntent(body)
}

// GetPaymentMethod retrieves display attributes for a payment method.
func (c *HTTPClient) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	body, err := c.do(ctx, http.MethodGet, "/v1/payment_methods/"+url.PathEscape(paymentMethodID), nil, "")
	if err != nil {
		return nil, err
	}

	var payload paymentMethodPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payment method: %w", err)
	}

	method := &PaymentMethod{
		ID:   payload.ID,
		Type: payload.Type,
	}
	if payload.Card != nil {
		method.CardBrand = payload.Card.Brand
		method.CardLast4 = payload.Card.Last4
	}

	return method, nil
}

// do issues one gateway request, retrying transient failures (network errors
// and 5xx) with exponential backoff. 4xx responses are classified and returned
// as *Error without retrying.
func (c *HTTPClient) do(
	ctx context.Context,
	method string,
	path string,
	form url.Values,
	idempotencyKey string,
) ([]byte, error) {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(500*time.Millisecond))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reqBody io.Reader
		if form != nil {
			reqBody = strings.NewReader(form.Encode())
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.RetryableError(&Error{Message: "gateway unreachable", Retryable: true})
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(&Error{Message: "failed to read gateway response", Retryable: true})
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return retry.RetryableError(classifyError(resp.StatusCode, body))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return classifyError(resp.StatusCode, body)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

func classifyError(statusCode int, body []byte) *Error {
	gwErr := &Error{
		Message:   "payment could not be processed",
		Retryable: statusCode >= http.StatusInternalServerError,
		Raw:       json.RawMessage(body),
	}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		gwErr.Code = payload.Error.Code
		// card_error messages come from the issuer and are safe to show.
		if payload.Error.Type == "card_error" {
			gwErr.Message = payload.Error.Message
		}
	}

	return gwErr
}

func parseIntent(body []byte) (*Intent, error) {
	var payload intentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}

	return intentFromPayload(payload, body)
}

func intentFromPayload(payload intentPayload, raw []byte) (*Intent, error) {
	cur, err := currency.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, fmt.Errorf("failed to parse intent currency: %w", err)
	}

	intent := &Intent{
		ID:           payload.ID,
		Outcome:      ParseOutcome(payload.Status),
		ClientSecret: payload.ClientSecret,
		AmountCents:  payload.Amount,
		Currency:     cur,
		Raw:          json.RawMessage(raw),
	}
	if payload.LastError != nil {
		intent.FailureMessage = payload.LastError.Message
	}
	if v, ok := payload.Metadata["order_id"]; ok {
		intent.OrderID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := payload.Metadata["user_id"]; ok {
		intent.UserID, _ = strconv.ParseInt(v, 10, 64)
	}

	return intent, nil
}
