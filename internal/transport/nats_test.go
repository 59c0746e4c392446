package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/avvvet/bookbuddy/internal/config"
	"github.com/avvvet/bookbuddy/internal/models"
)

type stubTurnHandler struct {
	reply *models.Reply
	err   error
	got   []models.InboundMessage
}

func (s *stubTurnHandler) HandleMessage(_ context.Context, in models.InboundMessage) (*models.Reply, error) {
	s.got = append(s.got, in)
	return s.reply, s.err
}

func newTestNATSTransport(t *testing.T, handler TurnHandler) *NATSTransport {
	t.Helper()
	cfg := &config.Config{
		NatsRequestSubject: "booking.message",
		NatsTimeout:        5 * time.Second,
		LLMTimeout:         30 * time.Second,
	}
	return NewNATSTransport(nil, cfg, handler, zaptest.NewLogger(t))
}

func decodeResponse(t *testing.T, data []byte) models.MessageResponse {
	t.Helper()
	var response models.MessageResponse
	require.NoError(t, json.Unmarshal(data, &response))
	return response
}

func TestHandleRequest(t *testing.T) {
	handler := &stubTurnHandler{reply: &models.Reply{
		ConversationID: "nats:web-1",
		State:          "collecting",
		Text:           "What service would you like?",
		Slots:          models.Slots{Name: models.StringPtr("Alex")},
	}}
	nt := newTestNATSTransport(t, handler)

	response := decodeResponse(t, nt.HandleRequest(context.Background(),
		[]byte(`{"conversation_id":"web-1","text":"I'm Alex"}`)))

	assert.Equal(t, "web-1", response.ConversationID)
	assert.Equal(t, "collecting", response.State)
	assert.Equal(t, "What service would you like?", response.Reply)
	require.NotNil(t, response.Slots)
	assert.Equal(t, "Alex", models.Deref(response.Slots.Name))
	assert.Nil(t, response.ErrorCode)

	require.Len(t, handler.got, 1)
	assert.Equal(t, models.InboundMessage{Channel: models.ChannelNATS, ChatID: "web-1", Text: "I'm Alex"}, handler.got[0])
}

func TestHandleRequest_BadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{nope`},
		{"missing conversation", `{"text":"hi"}`},
		{"missing text", `{"conversation_id":"web-1","text":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := &stubTurnHandler{}
			nt := newTestNATSTransport(t, handler)

			response := decodeResponse(t, nt.HandleRequest(context.Background(), []byte(tt.data)))

			require.NotNil(t, response.ErrorCode)
			assert.Equal(t, models.ErrorParseError, *response.ErrorCode)
			assert.Equal(t, "error", response.State)
			assert.Empty(t, handler.got)
		})
	}
}

func TestHandleRequest_HandlerError(t *testing.T) {
	handler := &stubTurnHandler{
		reply: &models.Reply{Text: "Sorry, something went wrong on our side. Please try again in a moment."},
		err:   errors.New("failed to load session: redis down"),
	}
	nt := newTestNATSTransport(t, handler)

	response := decodeResponse(t, nt.HandleRequest(context.Background(),
		[]byte(`{"conversation_id":"web-1","text":"hello"}`)))

	require.NotNil(t, response.ErrorCode)
	assert.Equal(t, models.ErrorInternal, *response.ErrorCode)
	assert.Contains(t, *response.ErrorMessage, "redis down")
	assert.Equal(t, handler.reply.Text, response.Reply)
}

type panickingTurnHandler struct{}

func (panickingTurnHandler) HandleMessage(context.Context, models.InboundMessage) (*models.Reply, error) {
	panic("slice bounds out of range")
}

func TestHandleRequest_HandlerPanic(t *testing.T) {
	nt := newTestNATSTransport(t, panickingTurnHandler{})

	var data []byte
	require.NotPanics(t, func() {
		data = nt.HandleRequest(context.Background(), []byte(`{"conversation_id":"web-1","text":"明天下午三点"}`))
	})

	response := decodeResponse(t, data)
	assert.Equal(t, "web-1", response.ConversationID)
	assert.Equal(t, "error", response.State)
	require.NotNil(t, response.ErrorCode)
	assert.Equal(t, models.ErrorInternal, *response.ErrorCode)
}

func TestNATSTransport_CloseWithoutConnection(t *testing.T) {
	nt := newTestNATSTransport(t, &stubTurnHandler{})
	assert.NoError(t, nt.Close())
}
