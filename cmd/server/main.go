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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/bootstrap"
	"github.com/avvvet/bookbuddy/internal/config"
	"github.com/avvvet/bookbuddy/internal/logging"
	"github.com/avvvet/bookbuddy/internal/transport"
)

func main() {
	// Load .env file if it exists (for development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("🚀 Starting BookBuddy webhook server...",
		zap.String("service", cfg.ServiceName),
		zap.String("business", cfg.BusinessName),
		zap.String("llm_provider", cfg.LLMProvider),
		zap.String("llm_model", cfg.Model()))

	ctx := context.Background()
	services, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("❌ Failed to initialize services", zap.Error(err))
	}
	defer services.Close()
	logger.Info("✅ Conversation controller initialized")

	router := transport.NewRouter(transport.HTTPConfig{
		Logger:         logger.Named("http"),
		Conversation:   services.Controller,
		WhatsApp:       services.Responder,
		MetricsHandler: services.MetricsHandler(),
		TurnTimeout:    cfg.LLMTimeout + 30*time.Second,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("👂 Listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("❌ HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("🛑 Received signal", zap.String("signal", sig.String()))
	logger.Info("🔄 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("⚠️ Error shutting down HTTP server", zap.Error(err))
	}

	if count, ok := services.Sessions.GetActiveSessionCount(); ok {
		logger.Info("📊 Final session count", zap.Int("sessions", count))
	}

	logger.Info("👋 BookBuddy webhook server stopped")
}
