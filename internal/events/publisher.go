package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// BookingReady is emitted once when a conversation first has every slot
// needed for a booking.
type BookingReady struct {
	EventID        string    `json:"event_id"`
	ConversationID string    `json:"conversation_id"`
	Channel        string    `json:"channel"`
	Locale         string    `json:"locale"`
	Name           string    `json:"name"`
	Service        string    `json:"service"`
	DatetimeText   string    `json:"datetime_text"`
	DatetimeISO    string    `json:"datetime_iso"`
	BookingURL     string    `json:"booking_url"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers booking events to downstream consumers
type Publisher interface {
	PublishBookingReady(ctx context.Context, event BookingReady) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishBookingReady(context.Context, BookingReady) error { return nil }

// NATSPublisher publishes events as JSON on a NATS subject
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher publishes on subject over an existing connection
func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
	}
}

// Encode fills in missing identity fields and marshals the event
func Encode(event BookingReady) ([]byte, error) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking event: %w", err)
	}
	return data, nil
}

func (p *NATSPublisher) PublishBookingReady(ctx context.Context, event BookingReady) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}
