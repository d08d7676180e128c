// Package chain reads published prediction records from the Phi registry
// contract over Neo N3 JSON-RPC. It never writes to the chain.
package chain

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/logging"
)

const (
	getPredictionMethod = "getPrediction"
	vmStateHalt         = "HALT"
)

var (
	// ErrNotFound means the contract answered but holds no record for the id.
	ErrNotFound = errors.New("prediction not found on chain")
	// ErrInvalidArgument is returned for an empty prediction id.
	ErrInvalidArgument = errors.New("predictionId is required")
)

// VMFaultError is a non-HALT execution result. Unlike ErrNotFound it is a hard failure.
type VMFaultError struct {
	State     string
	Exception string
}

func (e *VMFaultError) Error() string {
	exception := e.Exception
	if exception == "" {
		exception = "unknown error"
	}
	return fmt.Sprintf("VM fault: %s - %s", e.State, exception)
}

// Record is a published prediction as stored by the registry contract.
// Integer fields are kept as the decimal strings the node returns.
type Record struct {
	User         string `json:"user"`
	EventID      string `json:"eventId"`
	Probability  string `json:"probability"`
	Confidence   string `json:"confidence"`
	RiskTier     string `json:"riskTier"`
	Seed         string `json:"seed"`
	NeofsCID     string `json:"neofsCid"`
	Timestamp    string `json:"timestamp"`
	AgentVersion string `json:"agentVersion"`
	ProfileHash  string `json:"profileHash"`
}

type Client struct {
	rpcURL       string
	contractHash string
	httpClient   *http.Client
	logger       *zap.Logger
}

func NewClient(rpcURL, contractHash string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		rpcURL:       rpcURL,
		contractHash: contractHash,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logging.OrNop(logger).Named("chain"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type contractParam struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type stackItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

type rpcResponse struct {
	Result *struct {
		State     string      `json:"state"`
		Exception string      `json:"exception"`
		Stack     []stackItem `json:"stack"`
	} `json:"result"`
	Error json.RawMessage `json:"error"`
}

// GetPrediction calls getPrediction(predictionId) through invokefunction.
func (c *Client) GetPrediction(ctx context.Context, predictionID string) (*Record, error) {
	if predictionID == "" {
		return nil, ErrInvalidArgument
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "invokefunction",
		Params: []any{
			c.contractHash,
			getPredictionMethod,
			[]contractParam{{Type: "String", Value: predictionID}},
		},
		ID: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("RPC HTTP error: %s", resp.Status)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response: %w", err)
	}
	if out.Result == nil {
		detail := "no result field"
		if len(out.Error) > 0 && string(out.Error) != "null" {
			detail = string(out.Error)
		}
		return nil, fmt.Errorf("RPC error: %s", detail)
	}
	if out.Result.State != vmStateHalt {
		return nil, &VMFaultError{State: out.Result.State, Exception: out.Result.Exception}
	}
	if len(out.Result.Stack) == 0 {
		return nil, ErrNotFound
	}

	record, err := parseRecord(out.Result.Stack[0])
	if err != nil {
		return nil, err
	}
	c.logger.Debug("prediction read from chain", zap.String("id", predictionID), zap.String("event", record.EventID))
	return record, nil
}

func parseRecord(item stackItem) (*Record, error) {
	if item.Type != "Array" {
		return nil, ErrNotFound
	}
	var fields []stackItem
	if len(item.Value) > 0 {
		if err := json.Unmarshal(item.Value, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode stack array: %w", err)
		}
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	get := func(i int) string {
		if i >= len(fields) {
			return ""
		}
		return decodeValue(fields[i])
	}
	return &Record{
		User:         get(0),
		EventID:      get(1),
		Probability:  get(2),
		Confidence:   get(3),
		RiskTier:     get(4),
		Seed:         get(5),
		NeofsCID:     get(6),
		Timestamp:    get(7),
		AgentVersion: get(8),
		ProfileHash:  get(9),
	}, nil
}

// decodeValue renders a stack item as text. ByteStrings holding printable
// text are decoded; binary ones (script hashes) stay base64.
func decodeValue(item stackItem) string {
	if len(item.Value) == 0 || string(item.Value) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(item.Value, &s); err != nil {
		return string(item.Value)
	}
	if item.Type != "ByteString" {
		return s
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !printable(raw) {
		return s
	}
	return string(raw)
}

func printable(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
