// Package app wires configuration into the running components shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"phi.ai/agent-console/internal/chain"
	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/core"
	"phi.ai/agent-console/internal/events"
	"phi.ai/agent-console/internal/logging"
	"phi.ai/agent-console/internal/metrics"
	"phi.ai/agent-console/internal/phiapi"
	"phi.ai/agent-console/internal/speech"
	"phi.ai/agent-console/internal/store"
)

type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    *store.SQLiteStore
	Phi      *phiapi.Client
	LLM      *core.LLMService
	Speech   *speech.Adapter
	Clips    *speech.ClipStore
	Chain    *chain.Client
	Sessions *core.Manager
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	llm, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; commentary will use the fallback text")
	}

	adapter, clips, err := speech.FromConfig(cfg, logger, m)
	if err != nil {
		llm.Close()
		_ = db.Close()
		return nil, err
	}

	phi := phiapi.NewClient(phiapi.Options{
		BaseURL: cfg.PhiAPIURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
		Metrics: m,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: reg,
		Metrics:  m,
		Store:    db,
		Phi:      phi,
		LLM:      llm,
		Speech:   adapter,
		Clips:    clips,
		Chain:    chain.NewClient(cfg.NeoRPCURL, cfg.ContractHash, cfg.HTTPTimeout, logger),
		Sessions: core.NewManager(core.ManagerDeps{
			Store:       db,
			Backend:     phi,
			Commentator: llm,
			Speaker:     adapter,
			Classifier:  events.Default,
			Logger:      logger,
			Metrics:     m,
		}),
	}, nil
}

// Close waits for in-flight speech, then releases clients and the store.
func (a *App) Close() {
	a.Speech.Wait()
	a.LLM.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("error closing store", zap.Error(err))
	}
}
