package phiapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the persona/prediction endpoints with in-memory state.
type fakeBackend struct {
	mu       sync.Mutex
	personas map[string]Persona
	calls    atomic.Int32
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{personas: map[string]Persona{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /persona/update", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		var body PersonaUpdate
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		p := Persona{
			UserID:        body.UserID,
			RiskTolerance: body.RiskTolerance,
			Markets:       body.Markets,
			Horizon:       body.Horizon,
			DomainTags:    body.DomainTags,
			CreatedAt:     "2025-01-01T00:00:00",
			UpdatedAt:     "2025-01-01T00:00:00",
		}
		fb.mu.Lock()
		fb.personas[body.UserID] = p
		fb.mu.Unlock()
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("GET /persona/{userID}", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		fb.mu.Lock()
		p, ok := fb.personas[r.PathValue("userID")]
		fb.mu.Unlock()
		if !ok {
			http.Error(w, `{"detail":"Persona not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	})
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		var req PredictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		seed := 0.0
		if req.Seed != nil {
			seed = *req.Seed
		}
		_ = json.NewEncoder(w).Encode(Prediction{
			ID:                 "p-1",
			UserID:             req.UserID,
			EventID:            req.EventID,
			ProbabilityUp:      0.61,
			Confidence:         0.72,
			RiskTier:           "medium",
			Seed:               seed,
			ExplanationBullets: []string{"momentum", "volume"},
			AgentVersion:       "v0.1-spoon",
			CreatedAt:          "2025-01-01T00:00:00",
		})
	})
	mux.HandleFunc("GET /predictions/by-event/{eventID}", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		_ = json.NewEncoder(w).Encode([]Prediction{{ID: "e-1", EventID: r.PathValue("eventID")}})
	})
	mux.HandleFunc("GET /predictions/{userID}", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		_ = json.NewEncoder(w).Encode([]Prediction{{ID: "u-1", UserID: r.PathValue("userID")}, {ID: "u-2", UserID: r.PathValue("userID")}})
	})
	mux.HandleFunc("POST /x402/demo-payment", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		var req paymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(PaymentReceipt{
			Resource:      req.Resource,
			AmountUSDC:    req.AmountUSDC,
			PaymentHeader: "x402 token",
			RawOutput:     "ok",
		})
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		fb.calls.Add(1)
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fb, NewClient(Options{BaseURL: server.URL + "/"})
}

func TestUpdateThenGetPersonaRoundTrip(t *testing.T) {
	_, client := newFakeBackend(t)
	ctx := context.Background()

	draft := PersonaUpdate{
		UserID:        "demoUser",
		RiskTolerance: RiskHigh,
		Markets:       []string{"crypto", "stocks"},
		Horizon:       Horizon30d,
		DomainTags:    []string{"Crypto"},
	}
	saved, err := client.UpdatePersona(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01T00:00:00", saved.CreatedAt)

	got, err := client.GetPersona(ctx, "demoUser")
	require.NoError(t, err)
	assert.ElementsMatch(t, draft.Markets, got.Markets)
	assert.ElementsMatch(t, draft.DomainTags, got.DomainTags)
	assert.Equal(t, RiskHigh, got.RiskTolerance)
	assert.Equal(t, Horizon30d, got.Horizon)
}

func TestGetPersonaNotFound(t *testing.T) {
	_, client := newFakeBackend(t)

	_, err := client.GetPersona(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusNotFound, be.Status)
	assert.Contains(t, be.Message, "Persona not found")
}

func TestPredictSendsSeed(t *testing.T) {
	_, client := newFakeBackend(t)
	seed := 4242.0

	p, err := client.Predict(context.Background(), PredictionRequest{UserID: "demoUser", EventID: "btc-up", Seed: &seed})
	require.NoError(t, err)
	assert.Equal(t, "btc-up", p.EventID)
	assert.Equal(t, seed, p.Seed)
	assert.Equal(t, []string{"momentum", "volume"}, p.ExplanationBullets)
	assert.Nil(t, p.TxHash)
}

func TestListPredictions(t *testing.T) {
	_, client := newFakeBackend(t)
	ctx := context.Background()

	byUser, err := client.GetPredictionsForUser(ctx, "demoUser")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byEvent, err := client.GetPredictionsByEvent(ctx, "eth-up")
	require.NoError(t, err)
	require.Len(t, byEvent, 1)
	assert.Equal(t, "eth-up", byEvent[0].EventID)
}

func TestRequestMicropaymentDefaultsAmount(t *testing.T) {
	_, client := newFakeBackend(t)

	receipt, err := client.RequestMicropayment(context.Background(), "/predict", 0)
	require.NoError(t, err)
	assert.Equal(t, "/predict", receipt.Resource)
	assert.InDelta(t, 0.1, receipt.AmountUSDC, 1e-9)
	assert.Equal(t, "x402 token", receipt.PaymentHeader)
}

func TestHealth(t *testing.T) {
	_, client := newFakeBackend(t)

	status, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `{"status":"ok"}`, status)
}

func TestInvalidArgumentsSkipNetwork(t *testing.T) {
	fb, client := newFakeBackend(t)
	ctx := context.Background()

	_, err := client.GetPersona(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.UpdatePersona(ctx, PersonaUpdate{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.Predict(ctx, PredictionRequest{UserID: "u"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.Predict(ctx, PredictionRequest{EventID: "btc-up"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.GetPredictionsForUser(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.GetPredictionsByEvent(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = client.RequestMicropayment(ctx, "", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Zero(t, fb.calls.Load())
}

func TestServerErrorBecomesBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Persona not set for user", http.StatusBadRequest)
	}))
	defer server.Close()
	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.Predict(context.Background(), PredictionRequest{UserID: "u", EventID: "btc-up"})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusBadRequest, be.Status)
	assert.Equal(t, "predict", be.Op)
	assert.Contains(t, be.Error(), "API Error 400: Persona not set for user")
	assert.False(t, IsNotFound(err))
}

func TestTransportFailureBecomesBackendError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	client := NewClient(Options{BaseURL: url})

	_, err := client.GetPredictionsForUser(context.Background(), "u")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Zero(t, be.Status)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestMalformedBodyBecomesBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()
	client := NewClient(Options{BaseURL: server.URL})

	_, err := client.GetPersona(context.Background(), "u")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, http.StatusOK, be.Status)
}
