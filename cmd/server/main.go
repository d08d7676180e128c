package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"phi.ai/agent-console/internal/api"
	"phi.ai/agent-console/internal/app"
	"phi.ai/agent-console/internal/auth"
	"phi.ai/agent-console/internal/config"
	"phi.ai/agent-console/internal/logging"
)

func main() {
	port := flag.String("port", "", "HTTP port (overrides HTTP_PORT)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != "" {
		cfg.HTTPPort = *port
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	components, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer components.Close()

	apiHandler := api.NewAPIHandler(api.Deps{
		Sessions:      components.Sessions,
		Issuer:        auth.NewIssuer(cfg.JWTSecret, auth.DefaultTokenTTL),
		Gateway:       components.Phi,
		Commentator:   components.LLM,
		Speech:        components.Speech,
		Clips:         components.Clips,
		Chain:         components.Chain,
		Store:         components.Store,
		DefaultUserID: cfg.DefaultUserID,
		Logger:        logger,
	})
	router := api.NewRouter(apiHandler, components.Registry)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // prediction and commentary run inside one request
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting server",
			zap.String("addr", serverAddr),
			zap.String("backend", cfg.PhiAPIURL),
			zap.String("speech", components.Speech.Backend()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("could not listen", zap.String("addr", serverAddr), zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
