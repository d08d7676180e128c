package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"phi.ai/agent-console/internal/auth"
	"phi.ai/agent-console/internal/chain"
	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/core"
	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/phiapi"
	"phi.ai/agent-console/internal/speech"
	"phi.ai/agent-console/internal/store"
)

// Gateway is the part of the backend client served as pass-through routes.
type Gateway interface {
	GetPersona(ctx context.Context, userID string) (*phiapi.Persona, error)
	GetPredictionsForUser(ctx context.Context, userID string) ([]phiapi.Prediction, error)
	GetPredictionsByEvent(ctx context.Context, eventID string) ([]phiapi.Prediction, error)
	RequestMicropayment(ctx context.Context, resource string, amountUSDC float64) (*phiapi.PaymentReceipt, error)
	Health(ctx context.Context) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*speech.Clip, error)
	Backend() string
	Pending(clipID string) bool
}

type ClipSource interface {
	Get(id string) (*speech.Clip, bool)
}

type ChainReader interface {
	GetPrediction(ctx context.Context, predictionID string) (*chain.Record, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Sessions      *core.Manager
	Issuer        *auth.Issuer
	Gateway       Gateway
	Commentator   core.Commentator
	Speech        Synthesizer
	Clips         ClipSource
	Chain         ChainReader
	Store         Pinger
	DefaultUserID string
	Logger        *zap.Logger
}

type APIHandler struct {
	deps   Deps
	logger *zap.Logger
}

func NewAPIHandler(deps Deps) *APIHandler {
	return &APIHandler{deps: deps, logger: logging.OrNop(deps.Logger).Named("api")}
}

type ctxKey int

const sessionKey ctxKey = iota

func sessionFrom(ctx context.Context) *store.Session {
	s, _ := ctx.Value(sessionKey).(*store.Session)
	return s
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := h.deps.Issuer.ValidateJWT(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		session, err := h.deps.Sessions.Session(r.Context(), claims.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeError(w, http.StatusUnauthorized, "Session has ended")
				return
			}
			h.logger.Error("failed to load session", zap.String("session", claims.SessionID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to load session")
			return
		}
		if session.UserID != claims.Subject {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, session)))
	})
}

type HealthResponse struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
	Speech  string `json:"speech"`
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Backend: "ok", Store: "ok", Speech: "none"}
	if h.deps.Speech != nil {
		resp.Speech = h.deps.Speech.Backend()
	}
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			resp.Status, resp.Store = "degraded", err.Error()
		}
	}
	if status, err := h.deps.Gateway.Health(r.Context()); err != nil {
		resp.Status, resp.Backend = "degraded", err.Error()
	} else if status != "" {
		resp.Backend = status
	}
	writeJSON(w, http.StatusOK, resp)
}

type StartSessionRequest struct {
	UserID string   `json:"userId"`
	Seed   *float64 `json:"seed,omitempty"`
}

type StartSessionResponse struct {
	Session *store.Session `json:"session"`
	Token   string         `json:"token"`
}

func (h *APIHandler) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}
	if req.UserID == "" {
		req.UserID = h.deps.DefaultUserID
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	session, err := h.deps.Sessions.Start(r.Context(), req.UserID, req.Seed)
	if err != nil {
		h.logger.Error("failed to start session", zap.String("user", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to start session")
		return
	}
	token, err := h.deps.Issuer.GenerateJWT(session.UserID, session.ID)
	if err != nil {
		h.logger.Error("failed to sign session token", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusCreated, StartSessionResponse{Session: session, Token: token})
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r.Context()))
}

func (h *APIHandler) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := h.deps.Sessions.End(r.Context(), session.ID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
		h.logger.Error("failed to end session", zap.String("session", session.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to end session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := h.deps.Sessions.Conversation(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	messages, err := conv.History(r.Context())
	if err != nil {
		h.logger.Error("failed to list messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to list messages")
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type SendMessageRequest struct {
	Text string `json:"text"`
}

type TurnResponse struct {
	*core.Turn
	Error        string `json:"error,omitempty"`
	SpeechClipID string `json:"speechClipId,omitempty"`
}

// SendMessageHandler runs one turn. speechClipId names audio that is
// synthesized in the background; GET /api/speech/{clipID} answers 202
// until it is ready.
func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	conv, err := h.deps.Sessions.Conversation(r.Context(), sessionFrom(r.Context()).ID)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	turn, err := conv.HandleSend(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, core.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "Message text cannot be empty")
			return
		}
		h.logger.Error("turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	resp := TurnResponse{Turn: turn}
	if turn.Err != nil {
		resp.Error = turn.Err.Error()
	} else if h.deps.Clips != nil && h.deps.Speech != nil && h.deps.Speech.Backend() == config.SpeechBackendElevenLabs {
		resp.SpeechClipID = speech.ClipID(turn.AssistantMessage.Content)
	}
	writeJSON(w, http.StatusOK, resp)
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		req.Message = "Hello"
	}

	reply, err := h.deps.Commentator.Comment(r.Context(), req.Message)
	if err != nil {
		h.logger.Warn("commentary request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

type TTSRequest struct {
	Text string `json:"text"`
}

func (h *APIHandler) TTSHandler(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if speech.Sanitize(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}

	clip, err := h.deps.Speech.Synthesize(r.Context(), req.Text)
	if err != nil {
		h.logger.Warn("speech synthesis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(clip.Audio) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Audio)
}

func (h *APIHandler) SpeechClipHandler(w http.ResponseWriter, r *http.Request) {
	if h.deps.Clips == nil {
		writeError(w, http.StatusNotFound, "Clip not found")
		return
	}
	clipID := chi.URLParam(r, "clipID")
	// Checked before the lookup: a clip is stored before it stops pending.
	pending := h.deps.Speech != nil && h.deps.Speech.Pending(clipID)
	clip, ok := h.deps.Clips.Get(clipID)
	if !ok {
		if pending {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
			return
		}
		writeError(w, http.StatusNotFound, "Clip not found")
		return
	}
	w.Header().Set("Content-Type", clip.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(clip.Audio)
}

func (h *APIHandler) ChainPredictionHandler(w http.ResponseWriter, r *http.Request) {
	record, err := h.deps.Chain.GetPrediction(r.Context(), chi.URLParam(r, "predictionID"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, record)
	case errors.Is(err, chain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Prediction not found")
	case errors.Is(err, chain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Warn("chain lookup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *APIHandler) GetPersonaHandler(w http.ResponseWriter, r *http.Request) {
	persona, err := h.deps.Gateway.GetPersona(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.backendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, persona)
}

func (h *APIHandler) ListPredictionsHandler(w http.ResponseWriter, r *http.Request) {
	var predictions []phiapi.Prediction
	var err error
	switch user, event := r.URL.Query().Get("user"), r.URL.Query().Get("event"); {
	case user != "" && event != "":
		writeError(w, http.StatusBadRequest, "use either user or event, not both")
		return
	case event != "":
		predictions, err = h.deps.Gateway.GetPredictionsByEvent(r.Context(), event)
	default:
		predictions, err = h.deps.Gateway.GetPredictionsForUser(r.Context(), user)
	}
	if err != nil {
		h.backendError(w, err)
		return
	}
	if predictions == nil {
		predictions = []phiapi.Prediction{}
	}
	writeJSON(w, http.StatusOK, predictions)
}

type MicropaymentRequest struct {
	Resource   string  `json:"resource"`
	AmountUSDC float64 `json:"amountUsdc"`
}

func (h *APIHandler) MicropaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req MicropaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	receipt, err := h.deps.Gateway.RequestMicropayment(r.Context(), req.Resource, req.AmountUSDC)
	if err != nil {
		h.backendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *APIHandler) backendError(w http.ResponseWriter, err error) {
	var be *phiapi.BackendError
	switch {
	case errors.Is(err, phiapi.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &be) && be.Status >= 400 && be.Status < 500:
		writeError(w, be.Status, be.Message)
	default:
		h.logger.Warn("backend call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func (h *APIHandler) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.logger.Error("failed to load session state", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Failed to load session")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
