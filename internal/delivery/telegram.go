package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTelegramAPIURL = "https://api.telegram.org"

	// Telegram allows roughly 30 messages per second per bot
	DefaultTelegramSendRate = 25.0
)

var (
	ErrEmptyText     = errors.New("delivery: text required")
	ErrInvalidChatID = errors.New("delivery: invalid chat id")
	ErrMissingToken  = errors.New("delivery: telegram bot token missing")
)

var tracer = otel.Tracer("bookbuddy.internal.delivery")

// Sender sends a rendered reply back to a chat
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, chatID, text string) error

func (f SenderFunc) Send(ctx context.Context, chatID, text string) error {
	return f(ctx, chatID, text)
}

// TelegramSender posts messages through the Bot API sendMessage method
type TelegramSender struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// TelegramOption customises a TelegramSender
type TelegramOption func(*TelegramSender)

// WithBaseURL points the sender at another API host
func WithBaseURL(baseURL string) TelegramOption {
	return func(s *TelegramSender) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(s *TelegramSender) {
		s.httpClient = client
	}
}

// WithSendRate limits sends to perSecond across all chats
func WithSendRate(perSecond float64) TelegramOption {
	return func(s *TelegramSender) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func NewTelegramSender(token string, logger *zap.Logger, opts ...TelegramOption) *TelegramSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TelegramSender{
		token:   token,
		baseURL: DefaultTelegramAPIURL,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultTelegramSendRate), 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Sender = (*TelegramSender)(nil)

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// Send delivers text with HTML formatting. A non-2xx answer from the API is
// returned as an error.
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	if s.token == "" {
		return ErrMissingToken
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}

	ctx, span := tracer.Start(ctx, "delivery.telegram.send")
	defer span.End()
	span.SetAttributes(attribute.Int64("telegram.chat_id", id))

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram send throttled: %w", err)
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                id,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sendMessage: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("telegram sendMessage failed: %s", formatTelegramError(resp.StatusCode, body))
		span.RecordError(err)
		return err
	}

	s.logger.Debug("telegram message sent", zap.Int64("chat_id", id))
	return nil
}

func formatTelegramError(status int, body []byte) string {
	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Description != "" {
		return fmt.Sprintf("status %d: %s", status, parsed.Description)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
