package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogleAI  = "googleai"
)

var ErrEmptyCompletion = errors.New("llm returned no choices")

var tracer = otel.Tracer("bookbuddy.internal.llm")

// Options selects and configures a completion backend
type Options struct {
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// LangChainProvider adapts any langchaingo model to LLMProvider
type LangChainProvider struct {
	model   llms.Model
	name    string
	timeout time.Duration
}

// NewLangChainProvider wraps an already constructed langchaingo model
func NewLangChainProvider(model llms.Model, name string, timeout time.Duration) *LangChainProvider {
	return &LangChainProvider{
		model:   model,
		name:    name,
		timeout: timeout,
	}
}

// NewProvider builds the backend named in opts
func NewProvider(ctx context.Context, opts Options) (*LangChainProvider, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("api key required for provider %q", opts.Provider)
	}

	var (
		model llms.Model
		err   error
	)
	switch opts.Provider {
	case ProviderOpenAI, "":
		opts.Provider = ProviderOpenAI
		model, err = openai.New(
			openai.WithToken(opts.APIKey),
			openai.WithModel(opts.Model),
		)
	case ProviderAnthropic:
		model, err = anthropic.New(
			anthropic.WithToken(opts.APIKey),
			anthropic.WithModel(opts.Model),
		)
	case ProviderGoogleAI:
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(opts.APIKey),
			googleai.WithDefaultModel(opts.Model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", opts.Provider, err)
	}

	return NewLangChainProvider(model, opts.Provider, opts.Timeout), nil
}

// Name returns the backend name
func (p *LangChainProvider) Name() string {
	return p.name
}

// Complete sends the system instruction and user turn as a chat exchange
func (p *LangChainProvider) Complete(ctx context.Context, request *LLMRequest) (*LLMResponse, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := tracer.Start(ctx, "llm.complete")
	defer span.End()
	span.SetAttributes(attribute.String("llm.provider", p.name))

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, request.System),
		llms.TextParts(schema.ChatMessageTypeHuman, request.Prompt),
	}

	options := []llms.CallOption{llms.WithTemperature(request.Temperature)}
	if request.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(request.MaxTokens))
	}

	resp, err := p.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%s completion failed: %w", p.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		span.RecordError(ErrEmptyCompletion)
		return nil, ErrEmptyCompletion
	}

	choice := resp.Choices[0]
	return &LLMResponse{
		Content: choice.Content,
		Usage:   usageFrom(choice.GenerationInfo),
	}, nil
}

// usageFrom reads token counts from provider-specific generation info
func usageFrom(info map[string]any) *Usage {
	if len(info) == 0 {
		return nil
	}
	usage := &Usage{
		InputTokens:  firstInt(info, "PromptTokens", "InputTokens", "input_tokens"),
		OutputTokens: firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens"),
	}
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return nil
	}
	return usage
}

func firstInt(info map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
