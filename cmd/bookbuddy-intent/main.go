package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

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

	logger.Info("🚀 Starting BookBuddy Intent Service...",
		zap.String("service", cfg.ServiceName),
		zap.String("nats_url", cfg.NatsURL),
		zap.String("llm_model", cfg.Model()))

	// Validate required configuration
	if cfg.NatsURL == "" {
		logger.Fatal("❌ NATS_URL environment variable is required")
	}

	services, err := bootstrap.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("❌ Failed to initialize services", zap.Error(err))
	}
	defer services.Close()
	logger.Info("✅ Conversation controller initialized")

	natsTransport := transport.NewNATSTransport(services.NATS, cfg, services.Controller, logger.Named("nats"))
	if err := natsTransport.Start(); err != nil {
		logger.Fatal("❌ Failed to start NATS transport", zap.Error(err))
	}

	logger.Info("✅ BookBuddy Intent Service is running!",
		zap.String("request_subject", cfg.NatsRequestSubject),
		zap.String("event_subject", cfg.NatsEventSubject))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("🛑 Received signal", zap.String("signal", sig.String()))
	logger.Info("🔄 Shutting down gracefully...")

	if err := natsTransport.Close(); err != nil {
		logger.Warn("⚠️ Error closing NATS transport", zap.Error(err))
	}

	if count, ok := services.Sessions.GetActiveSessionCount(); ok {
		logger.Info("📊 Final session count", zap.Int("sessions", count))
	}

	logger.Info("👋 BookBuddy Intent Service stopped")
}
