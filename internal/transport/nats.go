package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/avvvet/bookbuddy/internal/config"
	"github.com/avvvet/bookbuddy/internal/models"
)

// TurnHandler runs a turn and returns the reply instead of delivering it
type TurnHandler interface {
	HandleMessage(ctx context.Context, in models.InboundMessage) (*models.Reply, error)
}

type NATSTransport struct {
	conn    *nats.Conn
	config  *config.Config
	handler TurnHandler
	logger  *zap.Logger
	sub     *nats.Subscription
}

// ConnectNATS dials the server with reconnects enabled
func ConnectNATS(cfg *config.Config, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("Connected to NATS server", zap.String("url", cfg.NatsURL))
	return conn, nil
}

func NewNATSTransport(conn *nats.Conn, cfg *config.Config, handler TurnHandler, logger *zap.Logger) *NATSTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSTransport{
		conn:    conn,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}
}

func (nt *NATSTransport) Start() error {
	sub, err := nt.conn.Subscribe(nt.config.NatsRequestSubject, nt.handleMessageRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.config.NatsRequestSubject, err)
	}
	nt.sub = sub

	nt.logger.Info("Subscribed to subject", zap.String("subject", nt.config.NatsRequestSubject))
	return nil
}

func (nt *NATSTransport) handleMessageRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), nt.config.LLMTimeout+nt.config.NatsTimeout)
	defer cancel()

	data := nt.HandleRequest(ctx, msg.Data)
	if err := msg.Respond(data); err != nil {
		nt.logger.Error("Error sending response", zap.Error(err))
	}
}

// HandleRequest decodes a MessageRequest, runs the turn and encodes the
// MessageResponse. A panicking turn is answered with INTERNAL_ERROR so the
// subscription goroutine survives.
func (nt *NATSTransport) HandleRequest(ctx context.Context, data []byte) (out []byte) {
	var request models.MessageRequest
	defer func() {
		if r := recover(); r != nil {
			nt.logger.Error("Panic while processing message",
				zap.String("conversation_id", request.ConversationID),
				zap.Any("panic", r))
			out = nt.errorResponse(&request, models.ErrorInternal, "internal error")
		}
	}()

	if err := json.Unmarshal(data, &request); err != nil {
		nt.logger.Warn("Error parsing request", zap.Error(err))
		return nt.errorResponse(&request, models.ErrorParseError, "Invalid request format")
	}
	if strings.TrimSpace(request.ConversationID) == "" || strings.TrimSpace(request.Text) == "" {
		return nt.errorResponse(&request, models.ErrorParseError, "conversation_id and text are required")
	}

	nt.logger.Debug("Processing message request", zap.String("conversation_id", request.ConversationID))

	reply, err := nt.handler.HandleMessage(ctx, models.InboundMessage{
		Channel: models.ChannelNATS,
		ChatID:  request.ConversationID,
		Text:    request.Text,
	})
	if err != nil {
		nt.logger.Error("Error processing message", zap.Error(err))
		response := nt.buildErrorResponse(&request, models.ErrorInternal, err.Error())
		if reply != nil {
			response.Reply = reply.Text
		}
		return nt.encode(response)
	}
	if reply == nil {
		return nt.errorResponse(&request, models.ErrorInternal, "no reply produced")
	}

	slots := reply.Slots
	return nt.encode(&models.MessageResponse{
		ConversationID: request.ConversationID,
		State:          reply.State,
		Reply:          reply.Text,
		Slots:          &slots,
	})
}

func (nt *NATSTransport) encode(response *models.MessageResponse) []byte {
	data, err := json.Marshal(response)
	if err != nil {
		nt.logger.Error("failed to marshal response", zap.Error(err))
		return []byte(`{"error_code":"` + models.ErrorInternal + `"}`)
	}
	return data
}

func (nt *NATSTransport) buildErrorResponse(request *models.MessageRequest, errorCode, errorMessage string) *models.MessageResponse {
	return &models.MessageResponse{
		ConversationID: request.ConversationID,
		State:          "error",
		Reply:          "I'm sorry, I encountered an error processing your request. Please try again.",
		ErrorCode:      &errorCode,
		ErrorMessage:   &errorMessage,
	}
}

func (nt *NATSTransport) errorResponse(request *models.MessageRequest, errorCode, errorMessage string) []byte {
	return nt.encode(nt.buildErrorResponse(request, errorCode, errorMessage))
}

// Close stops consuming requests. The connection belongs to the caller.
func (nt *NATSTransport) Close() error {
	if nt.sub == nil {
		return nil
	}
	if err := nt.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	nt.logger.Info("NATS subscription closed", zap.String("subject", nt.config.NatsRequestSubject))
	return nil
}
