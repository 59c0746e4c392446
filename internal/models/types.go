package models

import "time"

// Locale is one of the supported conversation languages
type Locale string

const (
	LocaleEnglish Locale = "en"
	LocaleChinese Locale = "zh"
)

// Channel identifies the messaging channel a conversation arrived on
type Channel string

const (
	ChannelTelegram Channel = "telegram"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelNATS     Channel = "nats"
)

// Slots holds the booking information gathered so far. A nil field means
// the value is still unknown.
type Slots struct {
	Name         *string `json:"name"`
	Service      *string `json:"service"`
	DatetimeText *string `json:"datetime_text"` // user's phrasing, kept for re-parsing
	DatetimeISO  *string `json:"datetime_iso"`  // set at most once
}

// Complete reports whether name, service and a parsed time are all known.
func (s Slots) Complete() bool {
	return s.Name != nil && s.Service != nil && s.DatetimeISO != nil
}

// Merge copies every non-nil extracted field into the slots. Filled slots
// are never cleared.
func (s *Slots) Merge(ex ExtractionResult) {
	if ex.Name != nil {
		s.Name = ex.Name
	}
	if ex.Service != nil {
		s.Service = ex.Service
	}
	if ex.DatetimeText != nil {
		s.DatetimeText = ex.DatetimeText
	}
}

// Session is the per-conversation state
type Session struct {
	ConversationID string    `json:"conversation_id"`
	Locale         Locale    `json:"locale"`
	Slots          Slots     `json:"slots"`
	LastActivity   time.Time `json:"last_activity"` // last accepted message
	CreatedAt      time.Time `json:"created_at"`
}

// ExtractionResult is the output of one extraction call
type ExtractionResult struct {
	Name         *string `json:"name"`
	Service      *string `json:"service"`
	DatetimeText *string `json:"datetime_text"`
	Reply        *string `json:"reply"`
}

// InboundMessage is a channel-neutral inbound chat message
type InboundMessage struct {
	Channel Channel
	ChatID  string
	Text    string
}

// ConversationID returns the session key for the message
func (m InboundMessage) ConversationID() string {
	return string(m.Channel) + ":" + m.ChatID
}

// Reply is what the controller decided to say back
type Reply struct {
	ConversationID string `json:"conversation_id"`
	State          string `json:"state"`
	Text           string `json:"reply"`
	Slots          Slots  `json:"slots"`
	Locale         Locale `json:"locale"`
}

// NATS request from a backend
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// NATS response to a backend
type MessageResponse struct {
	ConversationID string  `json:"conversation_id"`
	State          string  `json:"state"`
	Reply          string  `json:"reply"`
	Slots          *Slots  `json:"slots,omitempty"`
	ErrorCode      *string `json:"error_code,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

// Error codes
const (
	ErrorLLMFailed  = "LLM_API_FAILED"
	ErrorParseError = "PARSE_ERROR"
	ErrorInternal   = "INTERNAL_ERROR"
)

// StringPtr returns a pointer to s, or nil when s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
