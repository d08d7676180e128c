package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0xbf543d7e8371e06756a67b149004738420d1bd2b"

func newRPCServer(t *testing.T, result any) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string            `json:"jsonrpc"`
			Method  string            `json:"method"`
			Params  []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Method != "invokefunction" || len(req.Params) != 3 {
			http.Error(w, "unexpected call", http.StatusBadRequest)
			return
		}
		var contract, method string
		_ = json.Unmarshal(req.Params[0], &contract)
		_ = json.Unmarshal(req.Params[1], &method)
		if contract != testContract || method != "getPrediction" {
			http.Error(w, "unexpected target", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, testContract, 0, nil)
}

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestGetPredictionParsesRecord(t *testing.T) {
	client := newRPCServer(t, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"state": "HALT",
			"stack": []any{map[string]any{
				"type": "Array",
				"value": []any{
					map[string]any{"type": "ByteString", "value": base64.StdEncoding.EncodeToString([]byte{0x01, 0xff, 0x10})},
					map[string]any{"type": "ByteString", "value": b64("btc-up")},
					map[string]any{"type": "Integer", "value": "61"},
					map[string]any{"type": "Integer", "value": "72"},
					map[string]any{"type": "Integer", "value": "2"},
					map[string]any{"type": "Integer", "value": "4242"},
					map[string]any{"type": "ByteString", "value": b64("neofs-demo-object-id")},
					map[string]any{"type": "Integer", "value": "1733000000"},
					map[string]any{"type": "ByteString", "value": b64("v0.1-spoon")},
				},
			}},
		},
	})

	record, err := client.GetPrediction(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, "btc-up", record.EventID)
	assert.Equal(t, "61", record.Probability)
	assert.Equal(t, "4242", record.Seed)
	assert.Equal(t, "neofs-demo-object-id", record.NeofsCID)
	assert.Equal(t, "v0.1-spoon", record.AgentVersion)
	// Binary script hash stays base64.
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x01, 0xff, 0x10}), record.User)
	// Missing trailing field.
	assert.Empty(t, record.ProfileHash)
}

func TestGetPredictionEmptyArrayIsNotFound(t *testing.T) {
	client := newRPCServer(t, map[string]any{
		"result": map[string]any{
			"state": "HALT",
			"stack": []any{map[string]any{"type": "Array", "value": []any{}}},
		},
	})

	_, err := client.GetPrediction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPredictionEmptyStackIsNotFound(t *testing.T) {
	client := newRPCServer(t, map[string]any{
		"result": map[string]any{"state": "HALT", "stack": []any{}},
	})

	_, err := client.GetPrediction(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPredictionFaultIsHardError(t *testing.T) {
	client := newRPCServer(t, map[string]any{
		"result": map[string]any{"state": "FAULT", "exception": "boom", "stack": []any{}},
	})

	_, err := client.GetPrediction(context.Background(), "p-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	var fault *VMFaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "FAULT", fault.State)
	assert.Equal(t, "VM fault: FAULT - boom", fault.Error())
}

func TestGetPredictionRPCError(t *testing.T) {
	client := newRPCServer(t, map[string]any{
		"error": map[string]any{"code": -32602, "message": "Invalid params"},
	})

	_, err := client.GetPrediction(context.Background(), "p-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Invalid params")
}

func TestGetPredictionHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	client := NewClient(server.URL, testContract, 0, nil)

	_, err := client.GetPrediction(context.Background(), "p-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC HTTP error")
}

func TestGetPredictionRequiresID(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", testContract, 0, nil)

	_, err := client.GetPrediction(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
