package transport

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/models"
)

const (
	defaultTurnTimeout = 60 * time.Second
	maxWebhookBody     = 1 << 20
)

// MessageProcessor runs a stateful turn and delivers its reply
type MessageProcessor interface {
	Process(ctx context.Context, in models.InboundMessage)
}

// Replier produces a single stateless reply
type Replier interface {
	Reply(ctx context.Context, text string) string
}

// HTTPConfig holds router dependencies
type HTTPConfig struct {
	Logger         *zap.Logger
	Conversation   MessageProcessor
	WhatsApp       Replier       // optional
	MetricsHandler http.Handler  // optional
	TurnTimeout    time.Duration // upper bound for one webhook turn
}

type webhookHandler struct {
	logger       *zap.Logger
	conversation MessageProcessor
	whatsapp     Replier
	turnTimeout  time.Duration
}

// NewRouter creates the chi router with webhook, health and metrics routes
func NewRouter(cfg HTTPConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.TurnTimeout
	if timeout <= 0 {
		timeout = defaultTurnTimeout
	}
	h := &webhookHandler{
		logger:       logger,
		conversation: cfg.Conversation,
		whatsapp:     cfg.WhatsApp,
		turnTimeout:  timeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))

	r.Get("/", health)
	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Post("/telegram/webhook", h.telegram)
	if h.whatsapp != nil {
		r.Post("/whatsapp/webhook", h.whatsApp)
	}

	return r
}

// RequestLogger emits structured logs for every HTTP request
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			if reqID == "" {
				reqID = uuid.NewString()
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", reqID),
				zap.Int("status", ww.Status()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

type telegramUpdate struct {
	Message       *telegramMessage `json:"message"`
	EditedMessage *telegramMessage `json:"edited_message"`
}

type telegramMessage struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

// telegram handles a Bot API update. The gateway always gets 200 so it
// never retries.
func (h *webhookHandler) telegram(w http.ResponseWriter, r *http.Request) {
	defer writeOK(w)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("failed to read telegram update", zap.Error(err))
		return
	}

	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		h.logger.Warn("malformed telegram update", zap.Error(err))
		return
	}

	msg := update.Message
	if msg == nil {
		msg = update.EditedMessage
	}
	if msg == nil || msg.Chat.ID == 0 || strings.TrimSpace(msg.Text) == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.turnTimeout)
	defer cancel()

	h.conversation.Process(ctx, models.InboundMessage{
		Channel: models.ChannelTelegram,
		ChatID:  strconv.FormatInt(msg.Chat.ID, 10),
		Text:    msg.Text,
	})
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message"`
}

// whatsApp answers a Twilio inbound message with a TwiML document
func (h *webhookHandler) whatsApp(w http.ResponseWriter, r *http.Request) {
	doc := twimlResponse{}

	if err := r.ParseForm(); err != nil {
		h.logger.Warn("malformed whatsapp webhook", zap.Error(err))
	} else if text := strings.TrimSpace(r.PostForm.Get("Body")); text != "" {
		ctx, cancel := context.WithTimeout(r.Context(), h.turnTimeout)
		defer cancel()

		h.logger.Debug("whatsapp message", zap.String("from", r.PostForm.Get("From")))
		if reply := h.whatsapp.Reply(ctx, text); reply != "" {
			doc.Messages = append(doc.Messages, reply)
		}
	}

	writeTwiML(w, doc)
}

func writeTwiML(w http.ResponseWriter, doc twimlResponse) {
	out, err := xml.Marshal(doc)
	if err != nil {
		out = []byte("<Response></Response>")
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
