// Package phiapi is a typed client for the Phi prediction and persona backend.
// Every call is exactly one HTTP round trip: no retries, no caching.
package phiapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultPaymentAmount = 0.1
	maxErrorBody         = 4 << 10
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logging.OrNop(opts.Logger).Named("phiapi"),
		metrics:    opts.Metrics,
	}
}

func (c *Client) GetPersona(ctx context.Context, userID string) (*Persona, error) {
	if userID == "" {
		return nil, invalidArgument("userId")
	}
	var persona Persona
	if err := c.do(ctx, "getPersona", http.MethodGet, "/persona/"+url.PathEscape(userID), nil, &persona); err != nil {
		return nil, err
	}
	return &persona, nil
}

func (c *Client) UpdatePersona(ctx context.Context, draft PersonaUpdate) (*Persona, error) {
	if draft.UserID == "" {
		return nil, invalidArgument("userId")
	}
	var persona Persona
	if err := c.do(ctx, "updatePersona", http.MethodPost, "/persona/update", draft, &persona); err != nil {
		return nil, err
	}
	return &persona, nil
}

func (c *Client) Predict(ctx context.Context, req PredictionRequest) (*Prediction, error) {
	if req.UserID == "" {
		return nil, invalidArgument("userId")
	}
	if req.EventID == "" {
		return nil, invalidArgument("eventId")
	}
	var prediction Prediction
	if err := c.do(ctx, "predict", http.MethodPost, "/predict", req, &prediction); err != nil {
		return nil, err
	}
	return &prediction, nil
}

func (c *Client) GetPredictionsForUser(ctx context.Context, userID string) ([]Prediction, error) {
	if userID == "" {
		return nil, invalidArgument("userId")
	}
	var predictions []Prediction
	if err := c.do(ctx, "getPredictionsForUser", http.MethodGet, "/predictions/"+url.PathEscape(userID), nil, &predictions); err != nil {
		return nil, err
	}
	return predictions, nil
}

func (c *Client) GetPredictionsByEvent(ctx context.Context, eventID string) ([]Prediction, error) {
	if eventID == "" {
		return nil, invalidArgument("eventId")
	}
	var predictions []Prediction
	if err := c.do(ctx, "getPredictionsByEvent", http.MethodGet, "/predictions/by-event/"+url.PathEscape(eventID), nil, &predictions); err != nil {
		return nil, err
	}
	return predictions, nil
}

// RequestMicropayment runs the x402 demo payment. A non-positive amount
// falls back to 0.1 USDC.
func (c *Client) RequestMicropayment(ctx context.Context, resource string, amountUSDC float64) (*PaymentReceipt, error) {
	if resource == "" {
		return nil, invalidArgument("resource")
	}
	if amountUSDC <= 0 {
		amountUSDC = defaultPaymentAmount
	}
	var receipt PaymentReceipt
	body := paymentRequest{Resource: resource, AmountUSDC: amountUSDC}
	if err := c.do(ctx, "requestMicropayment", http.MethodPost, "/x402/demo-payment", body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Health returns the backend's status body as-is.
func (c *Client) Health(ctx context.Context) (string, error) {
	var status string
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &status); err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &BackendError{Op: op, Message: err.Error(), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(op, 0, time.Since(start))
		c.logger.Debug("backend request failed", zap.String("op", op), zap.Error(err))
		return &BackendError{Op: op, Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveBackend(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Debug("backend returned error status",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", text))
		return &BackendError{Op: op, Status: resp.StatusCode, Message: strings.TrimSpace(string(text))}
	}

	if text, ok := out.(*string); ok {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &BackendError{Op: op, Status: resp.StatusCode, Message: "failed to read response body: " + err.Error(), Err: err}
		}
		*text = strings.TrimSpace(string(raw))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &BackendError{Op: op, Status: resp.StatusCode, Message: "invalid response body: " + err.Error(), Err: err}
	}
	return nil
}
