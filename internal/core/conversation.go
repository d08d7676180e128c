package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"phi.ai/agent-console/internal/events"
	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
	"phi.ai/agent-console/internal/phiapi"
	"phi.ai/agent-console/internal/store"
)

var (
	// ErrCommentaryUnavailable marks a failed commentary call. It is
	// recovered with FallbackCommentary and never returned by HandleSend.
	ErrCommentaryUnavailable = errors.New("commentary unavailable")
	ErrEmptyMessage          = errors.New("message is empty")
)

type Predictor interface {
	Predict(ctx context.Context, req phiapi.PredictionRequest) (*phiapi.Prediction, error)
}

type Commentator interface {
	Comment(ctx context.Context, message string) (string, error)
}

type Speaker interface {
	Speak(text string)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, sessionID string, role store.Role, content string) (*store.Message, error)
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
}

type State int32

const (
	StateIdle State = iota
	StateAwaitingClassification
	StateAwaitingPrediction
	StateAwaitingCommentary
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingClassification:
		return "awaiting-classification"
	case StateAwaitingPrediction:
		return "awaiting-prediction"
	case StateAwaitingCommentary:
		return "awaiting-commentary"
	case StateRendering:
		return "rendering"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Turn is the outcome of one HandleSend. Err holds the prediction failure
// when the turn ended with the failure notice.
type Turn struct {
	UserMessage      *store.Message     `json:"userMessage"`
	AssistantMessage *store.Message     `json:"assistantMessage"`
	EventID          events.EventID     `json:"eventId"`
	Prediction       *phiapi.Prediction `json:"prediction,omitempty"`
	Commentary       string             `json:"commentary,omitempty"`
	CommentaryFailed bool               `json:"commentaryFailed"`
	Err              error              `json:"-"`
}

type ConversationDeps struct {
	Predictor   Predictor
	Commentator Commentator
	Speaker     Speaker
	Messages    MessageStore
	Classifier  *events.Classifier
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	// Seed draws the per-turn seed when the session has none pinned.
	Seed func() float64
}

// Conversation runs prediction turns for one session. Turns are strictly
// sequential: an overlapping HandleSend waits for the current one.
type Conversation struct {
	session *store.Session
	deps    ConversationDeps
	logger  *zap.Logger

	turnMu sync.Mutex
	state  atomic.Int32
}

func NewConversation(session *store.Session, deps ConversationDeps) *Conversation {
	if deps.Classifier == nil {
		deps.Classifier = events.Default
	}
	if deps.Seed == nil {
		deps.Seed = randomSeed
	}
	return &Conversation{
		session: session,
		deps:    deps,
		logger:  logging.OrNop(deps.Logger).Named("conversation").With(zap.String("session", session.ID)),
	}
}

func randomSeed() float64 {
	return float64(rand.IntN(10000))
}

func (c *Conversation) State() State {
	return State(c.state.Load())
}

func (c *Conversation) setState(s State) {
	c.state.Store(int32(s))
}

func (c *Conversation) Session() *store.Session {
	return c.session
}

func (c *Conversation) History(ctx context.Context) ([]store.Message, error) {
	return c.deps.Messages.ListMessages(ctx, c.session.ID)
}

// HandleSend runs one turn for text. Prediction failures are reported in
// Turn.Err; the returned error covers only input and storage failures.
func (c *Conversation) HandleSend(ctx context.Context, text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	c.turnMu.Lock()
	defer c.turnMu.Unlock()
	defer c.setState(StateIdle)

	userMsg, err := c.deps.Messages.AppendMessage(ctx, c.session.ID, store.RoleUser, text)
	if err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}
	turn := &Turn{UserMessage: userMsg}
	// The turn must close with an assistant message even if ctx is cancelled.
	closeCtx := context.WithoutCancel(ctx)
	c.setState(StateAwaitingClassification)

	turn.EventID = c.deps.Classifier.Classify(text)
	c.setState(StateAwaitingPrediction)

	seed := c.deps.Seed()
	if c.session.PinnedSeed != nil {
		seed = *c.session.PinnedSeed
	}

	var commentary string
	var commentaryErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.deps.Predictor.Predict(gctx, phiapi.PredictionRequest{
			UserID:  c.session.UserID,
			EventID: string(turn.EventID),
			Seed:    &seed,
		})
		if err != nil {
			return err
		}
		turn.Prediction = p
		c.setState(StateAwaitingCommentary)
		return nil
	})
	g.Go(func() error {
		commentary, commentaryErr = c.comment(gctx, text)
		return nil
	})
	predictErr := g.Wait()

	if predictErr != nil {
		c.logger.Warn("prediction failed", zap.String("event", string(turn.EventID)), zap.Error(predictErr))
		turn.Err = predictErr
		turn.AssistantMessage, err = c.deps.Messages.AppendMessage(closeCtx, c.session.ID, store.RoleAssistant, PredictionFailedText)
		if err != nil {
			return nil, fmt.Errorf("failed to append failure notice: %w", err)
		}
		c.deps.Metrics.TurnCompleted("prediction_failed")
		return turn, nil
	}

	if commentaryErr != nil {
		c.logger.Info("using fallback commentary", zap.Error(commentaryErr))
		c.deps.Metrics.CommentaryFallback()
		turn.CommentaryFailed = true
		commentary = FallbackCommentary
	}
	turn.Commentary = commentary

	reply := CombineReply(FormatSummary(turn.EventID, turn.Prediction), commentary)
	c.setState(StateRendering)
	turn.AssistantMessage, err = c.deps.Messages.AppendMessage(closeCtx, c.session.ID, store.RoleAssistant, reply)
	if err != nil {
		return nil, fmt.Errorf("failed to append assistant message: %w", err)
	}
	c.deps.Metrics.TurnCompleted("ok")

	if c.deps.Speaker != nil {
		c.deps.Speaker.Speak(reply)
	}
	return turn, nil
}

func (c *Conversation) comment(ctx context.Context, text string) (string, error) {
	if c.deps.Commentator == nil {
		return "", ErrCommentaryUnavailable
	}
	reply, err := c.deps.Commentator.Comment(ctx, text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCommentaryUnavailable, err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrCommentaryUnavailable
	}
	return reply, nil
}
