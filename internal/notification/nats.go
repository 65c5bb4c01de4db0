package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the sender needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// OutboundMessage is the payload a chat gateway consumes from the subject.
type OutboundMessage struct {
	RecipientID string    `json:"recipient_id"`
	Text        string    `json:"text"`
	QueuedAt    time.Time `json:"queued_at"`
}

// NATSSender hands messages to a chat gateway over NATS. Delivery is the gateway's job.
type NATSSender struct {
	conn    Publisher
	subject string
}

func NewNATSSender(conn Publisher, subject string) *NATSSender {
	return &NATSSender{conn: conn, subject: subject}
}

func (s *NATSSender) Send(_ context.Context, recipientID, text string) error {
	data, err := json.Marshal(OutboundMessage{
		RecipientID: recipientID,
		Text:        text,
		QueuedAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	if err := s.conn.Publish(s.subject, data); err != nil {
		return &DeliveryError{
			Recipient: recipientID,
			Permanent: errors.Is(err, nats.ErrBadSubject),
			Err:       err,
		}
	}
	return nil
}

// ConnectNATS opens a connection that keeps reconnecting in the background.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}
