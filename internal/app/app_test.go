package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/store"
)

func testConfig() *config.Config {
	return &config.Config{
		PhiAPIURL:       "http://127.0.0.1:1",
		DatabaseURL:     "file:app_test?mode=memory&cache=shared",
		HTTPTimeout:     time.Second,
		SpeechBackend:   config.SpeechBackendNone,
		SpeechClipCache: 4,
		NeoRPCURL:       "http://127.0.0.1:1",
		ContractHash:    "0x0",
	}
}

func TestNewWiresSessionManager(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	session, err := a.Sessions.Start(ctx, "demoUser", nil)
	require.NoError(t, err)
	conv, err := a.Sessions.Conversation(ctx, session.ID)
	require.NoError(t, err)

	// Unreachable backend: the turn ends with the failure notice.
	turn, err := conv.HandleSend(ctx, "btc")
	require.NoError(t, err)
	assert.Error(t, turn.Err)

	history, err := conv.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, store.RoleAssistant, history[2].Role)
	assert.Equal(t, "none", a.Speech.Backend())

	families, err := a.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRejectsUnknownSpeechBackend(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseURL = "file:app_test_bad?mode=memory&cache=shared"
	cfg.SpeechBackend = "robot"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
