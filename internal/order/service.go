package order

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
	"github.com/frahmantamala/order-assistant/internal/core/events"
	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type RepositoryAPI interface {
	// Get returns internal.ErrOrderNotFound when no order has the id.
	Get(ctx context.Context, id string) (*Order, error)
	ListAll(ctx context.Context, limit int) ([]*Order, error)
	// ListOpen returns every order that is neither cancelled nor completed, unbounded.
	ListOpen(ctx context.Context) ([]*Order, error)
	Upsert(ctx context.Context, o *Order) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Pricer derives product_total from the menu.
type Pricer interface {
	PriceItems(ctx context.Context, items []Item) (int64, error)
}

type Config struct {
	WaitingThresholdDays int
	ListLimit            int
	Location             *time.Location
}

const maxIDAttempts = 5

type Service struct {
	repo      RepositoryAPI
	guard     lock.Guard
	publisher EventPublisher
	pricer    Pricer
	clock     clock.Clock
	cfg       Config
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, guard lock.Guard, publisher EventPublisher, pricer Pricer, clk clock.Clock, cfg Config, logger *slog.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = clock.LoadLocation(clock.DefaultTimezone)
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 1000
	}
	return &Service{
		repo:      repo,
		guard:     guard,
		publisher: publisher,
		pricer:    pricer,
		clock:     clk,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

func (s *Service) CreateOrder(ctx context.Context, dto CreateOrderDTO) (*Order, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return nil, appErr
	}

	now := s.clock.Now()
	today := clock.DateOf(now, s.cfg.Location)
	eventDate, err := clock.ParseDate(dto.EventDate, s.cfg.Location)
	if err != nil {
		return nil, errors.NewValidationFieldError("event_date", err.Error(), errors.ErrCodeInvalidDate)
	}
	if appErr := validation.ValidateEventDate(eventDate, today); appErr != nil {
		return nil, appErr
	}

	items := make([]Item, 0, len(dto.Items))
	for _, it := range dto.Items {
		items = append(items, Item{Name: it.Name, Quantity: it.Quantity})
	}

	productTotal := dto.ProductTotal
	if productTotal == 0 && s.pricer != nil {
		productTotal, err = s.pricer.PriceItems(ctx, items)
		if err != nil {
			return nil, err
		}
	}
	if productTotal <= 0 {
		return nil, errors.NewValidationFieldError("product_total", "product_total is required when items cannot be priced", errors.ErrCodeInvalidAmount)
	}

	total, err := ledger.TotalAmount(productTotal, dto.PackagingFee, dto.DeliveryFee)
	if err != nil {
		return nil, err
	}

	id, err := s.newUniqueID(ctx, now)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:             id,
		CustomerName:   dto.CustomerName,
		CustomerChatID: dto.CustomerChatID,
		EventDate:      eventDate,
		Status:         InitialStatus(eventDate, today, s.cfg.WaitingThresholdDays),
		Items:          items,
		DeliveryMethod: dto.DeliveryMethod,
		Notes:          dto.Notes,
		ProductTotal:   productTotal,
		PackagingFee:   dto.PackagingFee,
		DeliveryFee:    dto.DeliveryFee,
		TotalAmount:    total,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.ApplyPaid(0); err != nil {
		return nil, err
	}

	saved, err := s.repo.Upsert(ctx, o)
	if err != nil {
		s.logger.Error("failed to save order", "order_id", o.ID, "error", err)
		return nil, errors.NewInternalError("failed to save order", err)
	}

	s.logger.Info("order created",
		"order_id", saved.ID,
		"status", saved.Status,
		"event_date", clock.FormatDate(saved.EventDate),
		"total_amount", saved.TotalAmount)
	return saved, nil
}

func (s *Service) newUniqueID(ctx context.Context, now time.Time) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := NewID(now, s.cfg.Location)
		if err != nil {
			return "", errors.NewInternalError("failed to generate order id", err)
		}
		_, err = s.repo.Get(ctx, id)
		if stdErrors.Is(err, errors.ErrOrderNotFound) {
			return id, nil
		}
		if err != nil {
			return "", errors.NewInternalError("failed to check order id", err)
		}
	}
	return "", errors.NewInternalError("failed to generate a unique order id", nil)
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]*Order, error) {
	orders, err := s.repo.ListAll(ctx, s.cfg.ListLimit)
	if err != nil {
		s.logger.Error("failed to list orders", "error", err)
		return nil, errors.NewInternalError("failed to list orders", err)
	}
	return orders, nil
}

// ConfirmOrder also reports the payment window that applies from today.
func (s *Service) ConfirmOrder(ctx context.Context, id string) (*Order, ledger.Window, error) {
	o, _, err := s.transition(ctx, id, EventConfirm, "")
	if err != nil {
		return nil, ledger.Window{}, err
	}
	today := clock.Today(s.clock, s.cfg.Location)
	return o, ledger.PaymentWindow(today, o.EventDate), nil
}

func (s *Service) CancelOrder(ctx context.Context, id, reason string) (*Order, error) {
	o, _, err := s.transition(ctx, id, EventCancel, reason)
	return o, err
}

// CompleteOrder returns irregular=true when the order skipped confirmation.
func (s *Service) CompleteOrder(ctx context.Context, id string) (*Order, bool, error) {
	return s.transition(ctx, id, EventComplete, "")
}

func (s *Service) AutoCancel(ctx context.Context, id, reason string) (*Order, error) {
	o, _, err := s.transition(ctx, id, EventAutoCancel, reason)
	return o, err
}

func (s *Service) transition(ctx context.Context, id string, ev Event, reason string) (*Order, bool, error) {
	var (
		result    *Order
		from      Status
		irregular bool
	)

	err := lock.WithLock(ctx, s.guard, id, func(ctx context.Context) error {
		o, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		from = o.Status

		now := s.clock.Now()
		irregular, err = o.Apply(ev, now, reason)
		if err != nil {
			s.logger.Warn("rejected order transition",
				"order_id", id,
				"status", from,
				"event", ev,
				"actor", errors.ActorFromContext(ctx))
			return err
		}
		if irregular {
			s.logger.Warn("order transition skipped a step",
				"order_id", id,
				"from", from,
				"to", o.Status)
		}

		// cancellation carries a reason, the rest only move status and its timestamp
		if o.Status == StatusCancelled {
			if _, err := s.repo.Upsert(ctx, o); err != nil {
				return errors.NewInternalError("failed to save order", err)
			}
		} else if err := s.repo.UpdateStatus(ctx, id, o.Status, now); err != nil {
			return fmt.Errorf("update status of %s: %w", id, err)
		}

		result = o
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.logger.Info("order transitioned",
		"order_id", id,
		"from", from,
		"to", result.Status,
		"event", ev,
		"actor", errors.ActorFromContext(ctx))
	s.publish(ctx, result, from, ev, reason)
	return result, irregular, nil
}

func (s *Service) publish(ctx context.Context, o *Order, from Status, ev Event, reason string) {
	if s.publisher == nil {
		return
	}

	var eventType string
	switch o.Status {
	case StatusConfirmed:
		eventType = events.EventTypeOrderConfirmed
	case StatusCancelled:
		eventType = events.EventTypeOrderCancelled
	case StatusCompleted:
		eventType = events.EventTypeOrderCompleted
	default:
		return
	}

	evt := events.NewOrderStatusChangedEvent(eventType, events.OrderStatusChange{
		OrderID:        o.ID,
		CustomerName:   o.CustomerName,
		CustomerChatID: o.CustomerChatID,
		FromStatus:     string(from),
		ToStatus:       string(o.Status),
		Reason:         reason,
		Automatic:      ev == EventAutoCancel,
	})
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Error("failed to publish order event", "order_id", o.ID, "event_type", eventType, "error", err)
	}
}
