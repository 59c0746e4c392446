package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTelegramSender_Send(t *testing.T) {
	var (
		gotPath string
		gotBody sendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	}))
	defer srv.Close()

	sender := NewTelegramSender("123:abc", zaptest.NewLogger(t),
		WithBaseURL(srv.URL+"/"),
		WithHTTPClient(srv.Client()),
		WithSendRate(0))

	err := sender.Send(context.Background(), "-100200", "📅 <b>Book here:</b> https://x")
	require.NoError(t, err)

	assert.Equal(t, "/bot123:abc/sendMessage", gotPath)
	assert.Equal(t, int64(-100200), gotBody.ChatID)
	assert.Equal(t, "📅 <b>Book here:</b> https://x", gotBody.Text)
	assert.Equal(t, "HTML", gotBody.ParseMode)
	assert.True(t, gotBody.DisableWebPagePreview)
}

func TestTelegramSender_Non2xx(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"described", http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, "status 403: Forbidden: bot was blocked by the user"},
		{"plain", http.StatusBadGateway, "upstream down", "status 502: upstream down"},
		{"empty", http.StatusInternalServerError, "", "status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			sender := NewTelegramSender("t", nil, WithBaseURL(srv.URL), WithSendRate(0))

			err := sender.Send(context.Background(), "1", "hi")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTelegramSender_RejectsBadInput(t *testing.T) {
	sender := NewTelegramSender("t", nil, WithBaseURL("http://127.0.0.1:0"))

	assert.ErrorIs(t, sender.Send(context.Background(), "1", "  "), ErrEmptyText)
	assert.ErrorIs(t, sender.Send(context.Background(), "abc", "hi"), ErrInvalidChatID)

	noToken := NewTelegramSender("", nil)
	assert.ErrorIs(t, noToken.Send(context.Background(), "1", "hi"), ErrMissingToken)
}

func TestTelegramSender_CanceledContext(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	sender := NewTelegramSender("t", nil, WithBaseURL(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, sender.Send(ctx, "1", "hi"))
	assert.Zero(t, calls)
}

func TestSenderFunc(t *testing.T) {
	var got string
	var s Sender = SenderFunc(func(_ context.Context, chatID, text string) error {
		got = chatID + ":" + text
		return nil
	})

	require.NoError(t, s.Send(context.Background(), "7", "hello"))
	assert.Equal(t, "7:hello", got)
}
