package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default completion models per provider
const (
	DefaultOpenAIModel    = "gpt-3.5-turbo"
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	DefaultGoogleAIModel  = "gemini-1.5-flash"
)

type Config struct {
	// Service configuration
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	ServiceName string `mapstructure:"SERVICE_NAME"`

	// LLM configuration
	LLMProvider     string        `mapstructure:"LLM_PROVIDER"`
	OpenAIAPIKey    string        `mapstructure:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `mapstructure:"ANTHROPIC_API_KEY"`
	GoogleAPIKey    string        `mapstructure:"GOOGLE_API_KEY"`
	LLMModel        string        `mapstructure:"LLM_MODEL"`
	LLMTimeout      time.Duration `mapstructure:"LLM_TIMEOUT"`
	LLMTemperature  float64       `mapstructure:"LLM_TEMPERATURE"`

	// Telegram configuration
	TelegramBotToken string  `mapstructure:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL   string  `mapstructure:"TELEGRAM_API_URL"`
	TelegramSendRate float64 `mapstructure:"TELEGRAM_SEND_RATE"`

	// Business configuration
	BusinessName      string        `mapstructure:"BUSINESS_NAME"`
	BookingURL        string        `mapstructure:"CALENDLY_URL"`
	ReferenceTimezone string        `mapstructure:"REFERENCE_TIMEZONE"`
	RateLimitWindow   time.Duration `mapstructure:"RATE_LIMIT_WINDOW"`

	// Session storage, in memory when RedisURL is empty
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	RedisURL   string        `mapstructure:"REDIS_URL"`

	// NATS configuration
	NatsURL            string        `mapstructure:"NATS_URL"`
	NatsRequestSubject string        `mapstructure:"NATS_REQUEST_SUBJECT"`
	NatsEventSubject   string        `mapstructure:"NATS_EVENT_SUBJECT"`
	NatsTimeout        time.Duration `mapstructure:"NATS_TIMEOUT"`
}

var defaults = map[string]any{
	"PORT":         "8000",
	"ENV":          "development",
	"LOG_LEVEL":    "info",
	"SERVICE_NAME": "bookbuddy",

	"LLM_PROVIDER":      "openai",
	"OPENAI_API_KEY":    "",
	"ANTHROPIC_API_KEY": "",
	"GOOGLE_API_KEY":    "",
	"LLM_MODEL":         "",
	"LLM_TIMEOUT":       "30s",
	"LLM_TEMPERATURE":   0.2,

	"TELEGRAM_BOT_TOKEN": "",
	"TELEGRAM_API_URL":   "https://api.telegram.org",
	"TELEGRAM_SEND_RATE": 25.0,

	"BUSINESS_NAME":      "Test Company",
	"CALENDLY_URL":       "https://calendly.com/andrews24ultra123/30min",
	"REFERENCE_TIMEZONE": "Asia/Singapore",
	"RATE_LIMIT_WINDOW":  "1.5s",

	"SESSION_TTL": "24h",
	"REDIS_URL":   "",

	"NATS_URL":             "", // events disabled when empty
	"NATS_REQUEST_SUBJECT": "booking.message",
	"NATS_EVENT_SUBJECT":   "booking.ready",
	"NATS_TIMEOUT":         "30s",
}

// Load reads configuration from the environment, an optional config.yaml
// in . or ./config, and the defaults above, in that order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail at first use
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.BookingURL) == "" {
		errs = append(errs, errors.New("CALENDLY_URL must not be empty"))
	}
	if _, err := time.LoadLocation(c.ReferenceTimezone); err != nil {
		errs = append(errs, fmt.Errorf("REFERENCE_TIMEZONE %q: %w", c.ReferenceTimezone, err))
	}
	switch c.LLMProvider {
	case "openai", "anthropic", "googleai":
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER %q is not one of openai, anthropic, googleai", c.LLMProvider))
	}
	if c.RateLimitWindow < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must not be negative"))
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		errs = append(errs, fmt.Errorf("LLM_TEMPERATURE %v out of range [0, 2]", c.LLMTemperature))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// APIKey returns the key for the selected provider
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "googleai":
		return c.GoogleAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

// Model returns LLM_MODEL or the provider's default
func (c *Config) Model() string {
	if c.LLMModel != "" {
		return c.LLMModel
	}
	switch c.LLMProvider {
	case "anthropic":
		return DefaultAnthropicModel
	case "googleai":
		return DefaultGoogleAIModel
	default:
		return DefaultOpenAIModel
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
