package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/luizpinheirodev/twitter-translate-bot/internal/client"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/config"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/ingestion"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/logging"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/oauth"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/resilience"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/server"
	"github.com/luizpinheirodev/twitter-translate-bot/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer func() { _ = logger.Sync() }()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize storage
	store, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("type", cfg.Storage.Type), zap.Error(err))
	}
	defer store.Close()

	signer, err := oauth.NewSigner(oauth.Credentials{
		ConsumerKey:    cfg.Twitter.APIKey,
		ConsumerSecret: cfg.Twitter.APIKeySecret,
		Token:          cfg.Twitter.AccessToken,
		TokenSecret:    cfg.Twitter.AccessTokenSecret,
	})
	if err != nil {
		logger.Fatal("failed to initialize signer", zap.Error(err))
	}

	// Each upstream gets its own connection pool
	policy := resilience.PolicyFromConfig(cfg.Retry)
	twitterExec := resilience.NewExecutor(client.TwitterService, client.NewHTTPClient(cfg.HTTP), policy, logger)
	translateExec := resilience.NewExecutor(client.TranslateService, client.NewHTTPClient(cfg.HTTP), policy, logger)

	twitter := client.NewTwitterClient(cfg.Twitter, signer, twitterExec, logger)
	translator := client.NewTranslateClient(cfg.Translate, translateExec)

	// Initialize ingestion service
	ingestor := ingestion.NewService(cfg.Sync, store, twitter, translator, logger)

	// Initialize HTTP server for API endpoints
	httpServer := server.NewServer(cfg.Server, ingestor, store, logger)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start HTTP server
	go func() {
		logger.Info("starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Start scheduled sync
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		logger.Info("starting sync scheduler",
			zap.String("account_id", cfg.Sync.AccountID),
			zap.Duration("interval", cfg.Sync.Interval))
		if err := ingestor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("sync scheduler error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutdown signal received, gracefully shutting down")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown services
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel() // Cancel scheduler context

	// Let an in-flight run finish its current call before storage closes
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("sync scheduler did not stop before shutdown deadline")
	}
	logger.Info("shutdown complete")
}
