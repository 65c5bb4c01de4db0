package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// Relay drains the outbound subject and delivers each message through a direct sender.
// It is the consumer side of NATSSender.
type Relay struct {
	sender Sender
	logger *slog.Logger
}

func NewRelay(sender Sender, logger *slog.Logger) *Relay {
	return &Relay{sender: sender, logger: logger}
}

// Handle delivers one queued message. Malformed payloads are dropped with a log line.
func (r *Relay) Handle(ctx context.Context, data []byte) error {
	var msg OutboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.RecipientID == "" {
		r.logger.Warn("dropping malformed outbound message", "error", err, "size", len(data))
		return nil
	}

	if err := r.sender.Send(ctx, msg.RecipientID, msg.Text); err != nil {
		var de *DeliveryError
		if errors.As(err, &de) && de.Permanent {
			r.logger.Warn("outbound message rejected", "recipient_id", msg.RecipientID, "error", err)
			return nil
		}
		return fmt.Errorf("relay delivery to %s: %w", msg.RecipientID, err)
	}
	return nil
}

// Run subscribes with a queue group so several relays share the load, until ctx ends.
func (r *Relay) Run(ctx context.Context, conn *nats.Conn, subject, queue string) error {
	msgs := make(chan *nats.Msg, 64)
	sub, err := conn.ChanQueueSubscribe(subject, queue, msgs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer func() {
		if err := sub.Drain(); err != nil {
			r.logger.Warn("failed to drain subscription", "subject", subject, "error", err)
		}
	}()

	r.logger.Info("outbound relay started", "subject", subject, "queue", queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-msgs:
			if err := r.Handle(ctx, m.Data); err != nil {
				r.logger.Error("outbound relay failed", "error", err)
			}
		}
	}
}
