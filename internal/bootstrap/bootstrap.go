package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/config"
	"github.com/avvvet/bookbuddy/internal/conversation"
	"github.com/avvvet/bookbuddy/internal/datetime"
	"github.com/avvvet/bookbuddy/internal/delivery"
	"github.com/avvvet/bookbuddy/internal/events"
	"github.com/avvvet/bookbuddy/internal/handlers"
	"github.com/avvvet/bookbuddy/internal/llm"
	"github.com/avvvet/bookbuddy/internal/memory"
	"github.com/avvvet/bookbuddy/internal/metrics"
	"github.com/avvvet/bookbuddy/internal/transport"
)

// Services is everything a binary needs to serve conversations
type Services struct {
	Sessions   *memory.Manager
	Provider   llm.LLMProvider
	Controller *conversation.Controller
	Responder  *handlers.Responder
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	NATS       *nats.Conn // nil when NATS_URL is empty
}

// Option customises Build
type Option func(*buildOptions)

type buildOptions struct {
	provider llm.LLMProvider
}

// WithProvider skips provider construction from config
func WithProvider(p llm.LLMProvider) Option {
	return func(o *buildOptions) {
		o.provider = p
	}
}

// Build wires sessions, the completion provider, the conversation
// controller and optional NATS events from config.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Services{}

	s.Registry = prometheus.NewRegistry()
	s.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.Metrics = metrics.New(s.Registry)

	store, err := buildStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Sessions = memory.NewManager(store, logger.Named("sessions"))

	s.Provider = o.provider
	if s.Provider == nil {
		provider, err := llm.NewProvider(ctx, llm.Options{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.APIKey(),
			Model:    cfg.Model(),
			Timeout:  cfg.LLMTimeout,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		s.Provider = provider
		logger.Info("llm provider ready", zap.String("provider", provider.Name()), zap.String("model", cfg.Model()))
	}

	normalizer, err := datetime.NewNormalizer(cfg.ReferenceTimezone)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	extractor := handlers.NewIntentHandler(s.Provider, cfg.BusinessName, logger.Named("extractor"),
		handlers.WithTemperature(cfg.LLMTemperature),
		handlers.WithMetrics(s.Metrics))
	s.Responder = handlers.NewResponder(s.Provider, cfg.BusinessName, cfg.BookingURL, logger.Named("responder"))

	controllerOpts := []conversation.Option{
		conversation.WithLogger(logger.Named("conversation")),
		conversation.WithMetrics(s.Metrics),
	}

	if cfg.TelegramBotToken != "" {
		controllerOpts = append(controllerOpts, conversation.WithSender(
			delivery.NewTelegramSender(cfg.TelegramBotToken, logger.Named("telegram"),
				delivery.WithBaseURL(cfg.TelegramAPIURL),
				delivery.WithSendRate(cfg.TelegramSendRate))))
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set; telegram replies will not be delivered")
	}

	if cfg.NatsURL != "" {
		conn, err := transport.ConnectNATS(cfg, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		s.NATS = conn
		controllerOpts = append(controllerOpts,
			conversation.WithPublisher(events.NewNATSPublisher(conn, cfg.NatsEventSubject)))
	}

	s.Controller = conversation.NewController(s.Sessions, extractor, normalizer, conversation.Settings{
		BusinessName:    cfg.BusinessName,
		BookingURL:      cfg.BookingURL,
		RateLimitWindow: cfg.RateLimitWindow,
	}, controllerOpts...)

	return s, nil
}

func buildStore(cfg *config.Config, logger *zap.Logger) (memory.Store, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory session store", zap.Duration("ttl", cfg.SessionTTL))
		return memory.NewMemoryStore(cfg.SessionTTL), nil
	}

	store, err := memory.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	logger.Info("using redis session store", zap.Duration("ttl", cfg.SessionTTL))
	return store, nil
}

// MetricsHandler serves the service registry
func (s *Services) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

// Close releases the session store and the NATS connection
func (s *Services) Close() error {
	var errs []error
	if s.Sessions != nil {
		if err := s.Sessions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.NATS != nil && !s.NATS.IsClosed() {
		if err := s.NATS.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
