// Package notification delivers chat messages to staff and customers.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Sender delivers one text message to one chat recipient.
type Sender interface {
	Send(ctx context.Context, recipientID, text string) error
}

// DeliveryError is a failed send. Permanent failures are not worth retrying.
type DeliveryError struct {
	Recipient  string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery to %s failed with status %d: %v", e.Recipient, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type RetryingSender struct {
	next        Sender
	maxAttempts uint64
	backoff     time.Duration
	logger      *slog.Logger
}

// NewRetryingSender retries transient failures with exponential backoff, up to maxAttempts sends in total.
func NewRetryingSender(next Sender, maxAttempts uint64, backoff time.Duration, logger *slog.Logger) *RetryingSender {
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &RetryingSender{next: next, maxAttempts: maxAttempts, backoff: backoff, logger: logger}
}

func (s *RetryingSender) Send(ctx context.Context, recipientID, text string) error {
	b := retry.WithMaxRetries(s.maxAttempts-1, retry.NewExponential(s.backoff))

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := s.next.Send(ctx, recipientID, text)
		if err == nil {
			return nil
		}

		var de *DeliveryError
		if errors.As(err, &de) && de.Permanent {
			return err
		}
		s.logger.Warn("message send failed",
			"recipient", recipientID,
			"attempt", attempt,
			"error", err)
		return retry.RetryableError(err)
	})
}

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, recipientID, text string) error {
	s.logger.Info("outbound message", "recipient", recipientID, "text", text)
	return nil
}
