package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/datetime"
	"github.com/avvvet/bookbuddy/internal/delivery"
	"github.com/avvvet/bookbuddy/internal/events"
	"github.com/avvvet/bookbuddy/internal/locale"
	"github.com/avvvet/bookbuddy/internal/memory"
	"github.com/avvvet/bookbuddy/internal/metrics"
	"github.com/avvvet/bookbuddy/internal/models"
)

// DefaultRateLimitWindow is the minimum gap between accepted messages of a
// single conversation
const DefaultRateLimitWindow = 1500 * time.Millisecond

// Inbound message kinds recorded in metrics
const (
	kindRateLimited = "rate_limited"
	kindCommand     = "command"
	kindTurn        = "turn"
)

var ErrEmptyMessage = errors.New("conversation: message has no chat id or text")

var tracer = otel.Tracer("bookbuddy.internal.conversation")

// Extractor pulls booking fields out of a user message. It never fails;
// errors collapse into a fallback result.
type Extractor interface {
	Extract(ctx context.Context, loc models.Locale, slots models.Slots, text string) models.ExtractionResult
}

// DateNormalizer resolves free-text dates in the reference timezone
type DateNormalizer interface {
	Normalize(text string, loc models.Locale) (string, *time.Time)
	Display(iso string) string
}

// Settings are the business-level knobs of the conversation
type Settings struct {
	BusinessName    string
	BookingURL      string
	RateLimitWindow time.Duration
}

// Controller runs one turn of the booking conversation per inbound message
type Controller struct {
	sessions   *memory.Manager
	extractor  Extractor
	normalizer DateNormalizer
	settings   Settings

	sender    delivery.Sender
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option customises a Controller
type Option func(*Controller)

// WithSender sets where Process delivers replies
func WithSender(sender delivery.Sender) Option {
	return func(c *Controller) {
		c.sender = sender
	}
}

// WithPublisher sets where booking-ready events go
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces time.Now for the rate gate
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController wires a controller. Sessions, extractor and normalizer are
// required.
func NewController(sessions *memory.Manager, extractor Extractor, normalizer DateNormalizer, settings Settings, opts ...Option) *Controller {
	if settings.RateLimitWindow < 0 {
		settings.RateLimitWindow = 0
	}
	c := &Controller{
		sessions:   sessions,
		extractor:  extractor,
		normalizer: normalizer,
		settings:   settings,
		publisher:  events.NopPublisher{},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Process handles a message and delivers the reply through the sender.
// Delivery failures are logged and dropped.
func (c *Controller) Process(ctx context.Context, in models.InboundMessage) {
	reply, err := c.HandleMessage(ctx, in)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			return
		}
		c.logger.Error("turn failed",
			zap.String("conversation_id", in.ConversationID()),
			zap.Error(err))
	}
	if reply == nil || c.sender == nil {
		return
	}

	sendErr := c.sender.Send(ctx, in.ChatID, reply.Text)
	c.metrics.ObserveOutbound(string(in.Channel), sendErr == nil)
	if sendErr != nil {
		c.logger.Warn("failed to deliver reply",
			zap.String("conversation_id", reply.ConversationID),
			zap.Error(sendErr))
	}
}

// HandleMessage runs a full turn: rate gate, commands, extraction, date
// normalization and the completion check. When the session store fails
// the returned reply is a fallback and err is set.
func (c *Controller) HandleMessage(ctx context.Context, in models.InboundMessage) (*models.Reply, error) {
	text := strings.TrimSpace(in.Text)
	if in.ChatID == "" || text == "" {
		return nil, ErrEmptyMessage
	}

	started := c.now()
	channel := string(in.Channel)
	conversationID := in.ConversationID()
	loc := locale.Detect(text)

	ctx, span := tracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.String("conversation.channel", channel),
	)

	unlock := c.sessions.Lock(conversationID)
	defer unlock()

	session, err := c.sessions.Get(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		return c.degraded(conversationID, loc), err
	}
	session.Locale = loc

	now := c.now()
	if !session.LastActivity.IsZero() && now.Sub(session.LastActivity) < c.settings.RateLimitWindow {
		c.metrics.ObserveInbound(channel, kindRateLimited)
		c.logger.Debug("rate limited", zap.String("conversation_id", conversationID))
		return c.reply(session, waitNotice(loc)), nil
	}
	session.LastActivity = now

	if cmd, ok := parseCommand(text); ok {
		c.metrics.ObserveInbound(channel, kindCommand)
		return c.runCommand(ctx, session, cmd)
	}
	c.metrics.ObserveInbound(channel, kindTurn)

	previous := StateOf(session.Slots)

	extracted := c.extractor.Extract(ctx, loc, session.Slots, text)
	session.Slots.Merge(extracted)
	c.normalize(&session.Slots)

	display := ""
	if session.Slots.DatetimeISO != nil {
		display = c.normalizer.Display(*session.Slots.DatetimeISO)
	}

	outcome := Transition(TransitionInput{
		Previous:    previous,
		Slots:       session.Slots,
		ModelReply:  extracted.Reply,
		DisplayTime: display,
		BookingURL:  c.settings.BookingURL,
		Locale:      loc,
	})

	if err := c.sessions.Save(ctx, session); err != nil {
		span.RecordError(err)
		return c.reply(session, outcome.Text), err
	}

	if outcome.Entered {
		c.bookingReady(ctx, in, session)
	}

	c.logger.Info("turn handled",
		zap.String("conversation_id", conversationID),
		zap.String("from", string(previous)),
		zap.String("to", string(outcome.State)),
		zap.String("locale", string(loc)))
	c.metrics.ObserveTurnLatency(channel, c.now().Sub(started).Seconds())

	return c.reply(session, outcome.Text), nil
}

// normalize attempts to resolve the datetime text while no ISO value has
// been set. A set ISO value is never replaced. The grammar follows the
// language of the stored phrase, not of the current message.
func (c *Controller) normalize(slots *models.Slots) {
	if slots.DatetimeText == nil || slots.DatetimeISO != nil {
		return
	}
	_, resolved := c.normalizer.Normalize(*slots.DatetimeText, locale.Detect(*slots.DatetimeText))
	if resolved == nil {
		return
	}
	iso := datetime.FormatISO(*resolved)
	slots.DatetimeISO = &iso
}

func (c *Controller) runCommand(ctx context.Context, session *models.Session, cmd command) (*models.Reply, error) {
	loc := session.Locale

	var text string
	switch cmd {
	case commandStart:
		text = startMessage(c.settings.BusinessName, loc)
	case commandHelp:
		text = helpMessage(loc)
	case commandBook:
		text = bookingLinkMessage(c.settings.BookingURL, loc)
	case commandReset:
		if err := c.sessions.Reset(ctx, session); err != nil {
			return c.reply(session, resetMessage(loc)), err
		}
		return c.reply(session, resetMessage(loc)), nil
	}

	if err := c.sessions.Save(ctx, session); err != nil {
		return c.reply(session, text), err
	}
	return c.reply(session, text), nil
}

func (c *Controller) bookingReady(ctx context.Context, in models.InboundMessage, session *models.Session) {
	c.metrics.ObserveBookingReady(string(in.Channel))

	err := c.publisher.PublishBookingReady(ctx, events.BookingReady{
		ConversationID: session.ConversationID,
		Channel:        string(in.Channel),
		Locale:         string(session.Locale),
		Name:           models.Deref(session.Slots.Name),
		Service:        models.Deref(session.Slots.Service),
		DatetimeText:   models.Deref(session.Slots.DatetimeText),
		DatetimeISO:    models.Deref(session.Slots.DatetimeISO),
		BookingURL:     c.settings.BookingURL,
	})
	if err != nil {
		c.logger.Warn("failed to publish booking event",
			zap.String("conversation_id", session.ConversationID),
			zap.Error(err))
	}
}

func (c *Controller) reply(session *models.Session, text string) *models.Reply {
	return &models.Reply{
		ConversationID: session.ConversationID,
		State:          string(StateOf(session.Slots)),
		Text:           text,
		Slots:          session.Slots,
		Locale:         session.Locale,
	}
}

func (c *Controller) degraded(conversationID string, loc models.Locale) *models.Reply {
	return &models.Reply{
		ConversationID: conversationID,
		State:          string(StateCollecting),
		Text: locale.T(
			"Sorry, something went wrong on our side. Please try again in a moment.",
			"抱歉，系统出了点问题，请稍后再试。",
			loc),
		Locale: loc,
	}
}
