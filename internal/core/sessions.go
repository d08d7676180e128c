package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/events"
	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
	"phi.ai/agent-console/internal/store"
)

type Backend interface {
	Predictor
	PersonaUpdater
}

type SessionStore interface {
	MessageStore
	CreateSession(ctx context.Context, userID string, pinnedSeed *float64) (*store.Session, error)
	GetSession(ctx context.Context, sessionID string) (*store.Session, error)
	SetSessionView(ctx context.Context, sessionID string, view store.View) error
	DeleteSession(ctx context.Context, sessionID string) error
}

type ManagerDeps struct {
	Store       SessionStore
	Backend     Backend
	Commentator Commentator
	Speaker     Speaker
	Classifier  *events.Classifier
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Manager owns the per-session conversation and wizard. Sessions live
// until End.
type Manager struct {
	deps   ManagerDeps
	logger *zap.Logger

	mu            sync.Mutex
	conversations map[string]*Conversation
	wizards       map[string]*Wizard
}

func NewManager(deps ManagerDeps) *Manager {
	return &Manager{
		deps:          deps,
		logger:        logging.OrNop(deps.Logger).Named("sessions"),
		conversations: make(map[string]*Conversation),
		wizards:       make(map[string]*Wizard),
	}
}

// Start opens a session for userID and posts the welcome message.
func (m *Manager) Start(ctx context.Context, userID string, pinnedSeed *float64) (*store.Session, error) {
	session, err := m.deps.Store.CreateSession(ctx, userID, pinnedSeed)
	if err != nil {
		return nil, err
	}
	if _, err := m.deps.Store.AppendMessage(ctx, session.ID, store.RoleSystem, WelcomeMessage); err != nil {
		return nil, fmt.Errorf("failed to append welcome message: %w", err)
	}
	m.logger.Info("session started", zap.String("session", session.ID), zap.String("user", userID))
	return session, nil
}

func (m *Manager) Session(ctx context.Context, sessionID string) (*store.Session, error) {
	return m.deps.Store.GetSession(ctx, sessionID)
}

func (m *Manager) Conversation(ctx context.Context, sessionID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conv, ok := m.conversations[sessionID]; ok {
		return conv, nil
	}
	session, err := m.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	conv := NewConversation(session, ConversationDeps{
		Predictor:   m.deps.Backend,
		Commentator: m.deps.Commentator,
		Speaker:     m.deps.Speaker,
		Messages:    m.deps.Store,
		Classifier:  m.deps.Classifier,
		Logger:      m.deps.Logger,
		Metrics:     m.deps.Metrics,
	})
	m.conversations[sessionID] = conv
	return conv, nil
}

func (m *Manager) Wizard(ctx context.Context, sessionID string) (*Wizard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if wiz, ok := m.wizards[sessionID]; ok {
		return wiz, nil
	}
	session, err := m.deps.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	wiz := NewWizard(session.UserID, WizardDeps{
		Updater: m.deps.Backend,
		OnComplete: func(ctx context.Context) error {
			return m.deps.Store.SetSessionView(ctx, sessionID, store.ViewConversation)
		},
		Logger:  m.deps.Logger,
		Metrics: m.deps.Metrics,
	})
	m.wizards[sessionID] = wiz
	return wiz, nil
}

// End discards the session, its messages and its in-memory state.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.conversations, sessionID)
	delete(m.wizards, sessionID)
	m.mu.Unlock()

	if err := m.deps.Store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	m.logger.Info("session ended", zap.String("session", sessionID))
	return nil
}
