package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/order-assistant/internal/core/events"
	"github.com/frahmantamala/order-assistant/pkg/money"
)

// Subscriber is the part of the event bus the notifier registers with.
type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

// AdminNotifier turns domain events into chat alerts for staff.
type AdminNotifier struct {
	sender    Sender
	directory Directory
	logger    *slog.Logger
}

func NewAdminNotifier(sender Sender, directory Directory, logger *slog.Logger) *AdminNotifier {
	return &AdminNotifier{sender: sender, directory: directory, logger: logger}
}

func (n *AdminNotifier) Register(bus Subscriber) {
	bus.Subscribe(events.EventTypePaymentRecorded, n.HandlePaymentRecorded)
	bus.Subscribe(events.EventTypePaymentNeedsReview, n.HandlePaymentNeedsReview)
	bus.Subscribe(events.EventTypeOrderCancelled, n.HandleOrderCancelled)
}

func (n *AdminNotifier) HandlePaymentRecorded(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}
	text := fmt.Sprintf("Pembayaran %s untuk %s tercatat. Status %s, sisa %s.",
		money.IDR(e.AmountConfirmed), e.OrderID, e.PaymentStatus, money.IDR(e.RemainingBalance))
	return n.broadcast(ctx, e.OrderID, text)
}

func (n *AdminNotifier) HandlePaymentNeedsReview(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.PaymentNeedsReviewEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}
	text := fmt.Sprintf("Perlu dicek: bukti bayar %s menunjukkan %s, tagihan %s. Menunggu konfirmasi dari %s.",
		e.OrderID, money.IDR(e.CandidateAmount), money.IDR(e.ExpectedAmount), e.ActorID)
	return n.broadcast(ctx, e.OrderID, text)
}

func (n *AdminNotifier) HandleOrderCancelled(ctx context.Context, event events.Event) error {
	e, ok := event.(*events.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	text := fmt.Sprintf("Pesanan %s (%s) dibatalkan.", e.OrderID, e.CustomerName)
	if e.Automatic {
		text = fmt.Sprintf("Pesanan %s (%s) dibatalkan otomatis: %s.", e.OrderID, e.CustomerName, e.Reason)
	}
	return n.broadcast(ctx, e.OrderID, text)
}

// broadcast sends to every admin and fails only when nobody received the message.
func (n *AdminNotifier) broadcast(ctx context.Context, orderID, text string) error {
	recipients, err := n.directory.ListActiveAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}

	var errs []error
	for _, r := range recipients {
		if err := n.sender.Send(ctx, r, text); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(recipients) && len(errs) > 0 {
		return fmt.Errorf("alert for %s reached no admin: %w", orderID, errors.Join(errs...))
	}
	if len(errs) > 0 {
		n.logger.Warn("alert partially delivered", "order_id", orderID, "failed", len(errs), "recipients", len(recipients))
	}
	return nil
}
