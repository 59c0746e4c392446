package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/llm"
	"github.com/avvvet/bookbuddy/internal/locale"
	"github.com/avvvet/bookbuddy/internal/metrics"
	"github.com/avvvet/bookbuddy/internal/models"
	"github.com/avvvet/bookbuddy/internal/prompts"
)

const (
	extractionMaxTokens   = 300
	extractionTemperature = 0.2
)

// IntentHandler extracts booking fields from free text through the LLM
type IntentHandler struct {
	provider     llm.LLMProvider
	businessName string
	temperature  float64
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// Option customises an IntentHandler
type Option func(*IntentHandler)

// WithTemperature overrides the sampling temperature
func WithTemperature(t float64) Option {
	return func(h *IntentHandler) {
		h.temperature = t
	}
}

// WithMetrics records extraction outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *IntentHandler) {
		h.metrics = m
	}
}

func NewIntentHandler(provider llm.LLMProvider, businessName string, logger *zap.Logger, opts ...Option) *IntentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IntentHandler{
		provider:     provider,
		businessName: businessName,
		temperature:  extractionTemperature,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Extract makes a single completion call and decodes it. Any failure
// collapses to FallbackExtraction for the locale.
func (h *IntentHandler) Extract(ctx context.Context, loc models.Locale, slots models.Slots, userText string) models.ExtractionResult {
	request := &llm.LLMRequest{
		System:      prompts.BuildSystemPrompt(h.businessName),
		Prompt:      prompts.BuildUserTurn(slots, userText),
		MaxTokens:   extractionMaxTokens,
		Temperature: h.temperature,
	}

	response, err := h.provider.Complete(ctx, request)
	if err != nil {
		h.logger.Warn("extraction call failed", zap.Error(err))
		h.metrics.ObserveExtraction(metrics.OutcomeLLMError)
		return FallbackExtraction(loc)
	}

	result, err := prompts.DecodeExtraction(response.Content)
	if err != nil {
		h.logger.Warn("failed to decode extraction",
			zap.Error(err),
			zap.Int("response_length", len(response.Content)))
		h.metrics.ObserveExtraction(metrics.OutcomeDecodeError)
		return FallbackExtraction(loc)
	}

	if response.Usage != nil {
		h.logger.Debug("extraction usage",
			zap.Int("input_tokens", response.Usage.InputTokens),
			zap.Int("output_tokens", response.Usage.OutputTokens))
	}
	h.metrics.ObserveExtraction(metrics.OutcomeOK)

	return result
}

// FallbackExtraction is the default result: nothing extracted, and a
// generic request for name, service and time.
func FallbackExtraction(loc models.Locale) models.ExtractionResult {
	return models.ExtractionResult{
		Reply: models.StringPtr(locale.T(
			"Could you share your name, the service, and a preferred date/time?",
			"请告诉我你的名字、想预约的服务，以及希望的日期/时间。",
			loc)),
	}
}

// Responder answers stateless channels with a single completion call
type Responder struct {
	provider     llm.LLMProvider
	businessName string
	bookingURL   string
	logger       *zap.Logger
}

func NewResponder(provider llm.LLMProvider, businessName, bookingURL string, logger *zap.Logger) *Responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Responder{
		provider:     provider,
		businessName: businessName,
		bookingURL:   bookingURL,
		logger:       logger,
	}
}

// Reply returns the model's answer followed by the booking link. On any
// failure it returns a canned greeting with the link instead.
func (r *Responder) Reply(ctx context.Context, userText string) string {
	loc := locale.Detect(userText)

	response, err := r.provider.Complete(ctx, &llm.LLMRequest{
		System:      prompts.BuildResponderPrompt(r.businessName),
		Prompt:      userText,
		MaxTokens:   extractionMaxTokens,
		Temperature: extractionTemperature,
	})

	text := ""
	if err != nil {
		r.logger.Warn("responder call failed", zap.Error(err))
	} else {
		text = strings.TrimSpace(response.Content)
	}
	if text == "" {
		text = locale.T(
			"Hi! I'm the "+r.businessName+" assistant. Tell me what you'd like to book.",
			"你好！我是 "+r.businessName+" 的预约助理。请告诉我你想预约的服务。",
			loc)
	}

	return text + "\n\n" + locale.T("📅 Book here: ", "📅 点击预约：", loc) + r.bookingURL
}
