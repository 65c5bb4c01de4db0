package reminder

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/internal/notification"
	"github.com/frahmantamala/order-assistant/internal/order"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type OrderSource interface {
	ListOpen(ctx context.Context) ([]*order.Order, error)
}

type Canceller interface {
	AutoCancel(ctx context.Context, id, reason string) (*order.Order, error)
}

const AutoCancelReason = "full payment not received by H-3"

type Summary struct {
	Date             string `json:"date"`
	Sent             int    `json:"sent"`
	Skipped          int    `json:"skipped"`
	Failed           int    `json:"failed"`
	AutoCancelled    int    `json:"auto_cancelled"`
	AlreadyProcessed int    `json:"already_processed"`
	// Suppressed orders already had a reminder sent and get no more.
	Suppressed int `json:"suppressed"`
	Locked     int `json:"locked"`
	Errors     int `json:"errors"`
}

type Config struct {
	Location *time.Location
}

type Scheduler struct {
	orders    OrderSource
	canceller Canceller
	log       Log
	directory notification.Directory
	sender    notification.Sender
	guard     lock.Guard
	clock     clock.Clock
	loc       *time.Location
	metrics   *Metrics
	logger    *slog.Logger
}

func NewScheduler(orders OrderSource, canceller Canceller, log Log, directory notification.Directory, sender notification.Sender,
	guard lock.Guard, clk clock.Clock, metrics *Metrics, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = clock.LoadLocation(clock.DefaultTimezone)
	}
	return &Scheduler{
		orders:    orders,
		canceller: canceller,
		log:       log,
		directory: directory,
		sender:    sender,
		guard:     guard,
		clock:     clk,
		loc:       cfg.Location,
		metrics:   metrics,
		logger:    logger,
	}
}

// run holds per-invocation state. Recipients are looked up once, on first use.
type run struct {
	today      time.Time
	todayKey   string
	snap       snapshot
	summary    *Summary
	recipients []string
	dirErr     error
	dirLoaded  bool
}

// RunDailyReminders evaluates every open order against asOf (today when nil). It is safe to rerun for
// the same day: decided keys are skipped and previously reminded orders are never reminded again.
// Only failures to read orders or the log abort the run; per-order problems are counted.
func (s *Scheduler) RunDailyReminders(ctx context.Context, asOf *time.Time) (summary Summary, err error) {
	defer func() { s.metrics.observeRun(err) }()

	today := clock.Today(s.clock, s.loc)
	if asOf != nil {
		today = clock.CivilDate(*asOf, s.loc)
	}
	r := &run{today: today, todayKey: clock.FormatDate(today), summary: &summary}
	summary.Date = r.todayKey

	orders, err := s.orders.ListOpen(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load orders: %w", err)
	}
	entries, err := s.log.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load reminder log: %w", err)
	}
	r.snap = newSnapshot(entries, r.todayKey)

	s.logger.Info("reminder run started", "date", r.todayKey, "orders", len(orders), "log_entries", len(entries))

	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s.processOrder(ctx, r, o)
	}

	s.logger.Info("reminder run finished",
		"date", summary.Date,
		"sent", summary.Sent,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"auto_cancelled", summary.AutoCancelled,
		"already_processed", summary.AlreadyProcessed,
		"suppressed", summary.Suppressed,
		"locked", summary.Locked,
		"errors", summary.Errors)
	return summary, nil
}

func (s *Scheduler) processOrder(ctx context.Context, r *run, o *order.Order) {
	if o.Status.IsTerminal() {
		return
	}
	t, ok := TypeForDaysDiff(o.DaysUntilEvent(r.today))
	if !ok {
		return
	}
	log := s.logger.With("order_id", o.ID, "reminder_type", t, "date", r.todayKey)

	// the payment deadline holds even for orders that were already reminded
	if t == TypeH3 && o.PaymentStatus != ledger.StatusFullPaid {
		s.autoCancel(ctx, r, o, log)
		return
	}

	if r.snap.sentOrders[o.ID] {
		r.summary.Suppressed++
		log.Debug("order already reminded, skipping")
		return
	}

	key := Key{OrderID: o.ID, Type: t, Date: r.todayKey}
	if r.snap.decided[key] {
		r.summary.AlreadyProcessed++
		log.Debug("reminder already decided today")
		return
	}

	if t == TypeH4 && o.PaymentStatus == ledger.StatusFullPaid {
		s.record(ctx, r, log, &Entry{
			OrderID: o.ID, Type: t, Date: r.today, Status: StatusSkipped,
			Notes: "already fully paid",
		})
		return
	}

	err := lock.WithLock(ctx, s.guard, o.ID, func(ctx context.Context) error {
		s.dispatch(ctx, r, o, t, log)
		return nil
	})
	if err != nil {
		if stdErrors.Is(err, errors.ErrOrderLocked) {
			r.summary.Locked++
			log.Warn("order locked by another writer, reminder deferred")
			return
		}
		r.summary.Errors++
		log.Error("reminder dispatch failed", "error", err)
	}
}

func (s *Scheduler) autoCancel(ctx context.Context, r *run, o *order.Order, log *slog.Logger) {
	cancelled, err := s.canceller.AutoCancel(ctx, o.ID, AutoCancelReason)
	if err != nil {
		if stdErrors.Is(err, errors.ErrOrderLocked) {
			r.summary.Locked++
			log.Warn("order locked, auto-cancel deferred")
			return
		}
		r.summary.Errors++
		log.Error("auto-cancel failed", "error", err)
		return
	}

	r.summary.AutoCancelled++
	s.metrics.observeAutoCancel()
	log.Info("order auto-cancelled", "payment_status", o.PaymentStatus, "remaining_balance", o.RemainingBalance)

	if cancelled.CustomerChatID == "" {
		log.Warn("cancelled order has no customer chat id, customer not notified")
		return
	}
	if err := s.sender.Send(ctx, cancelled.CustomerChatID, CancellationNotice(cancelled)); err != nil {
		log.Error("failed to notify customer of auto-cancel", "error", err)
	}
}

func (s *Scheduler) dispatch(ctx context.Context, r *run, o *order.Order, t Type, log *slog.Logger) {
	recipients, dirErr := s.recipients(ctx, r)
	text := Render(t, o)

	delivered := 0
	var firstErr error
	for _, recipient := range recipients {
		if err := s.sender.Send(ctx, recipient, text); err != nil {
			log.Warn("reminder delivery failed", "recipient", recipient, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}

	entry := &Entry{OrderID: o.ID, Type: t, Date: r.today}
	switch {
	case delivered > 0:
		entry.Status = StatusSent
		entry.Notes = fmt.Sprintf("delivered to %d of %d recipients", delivered, len(recipients))
	case len(recipients) == 0:
		entry.Status = StatusFailed
		entry.Notes = "no active recipients"
		if dirErr != nil {
			entry.Notes = fmt.Sprintf("no active recipients: %v", dirErr)
		}
	default:
		entry.Status = StatusFailed
		entry.Notes = errors.NewExternalError("no recipient reachable", errors.ErrCodeTotalDeliveryFailure, firstErr).Error()
	}
	s.record(ctx, r, log, entry)
}

func (s *Scheduler) recipients(ctx context.Context, r *run) ([]string, error) {
	if !r.dirLoaded {
		r.recipients, r.dirErr = s.directory.ListActiveAdmins(ctx)
		r.dirLoaded = true
		if r.dirErr != nil {
			s.logger.Error("failed to list reminder recipients", "error", r.dirErr)
		}
	}
	return r.recipients, r.dirErr
}

// record appends one entry and counts it. A duplicate means a concurrent run got there first.
func (s *Scheduler) record(ctx context.Context, r *run, log *slog.Logger, e *Entry) {
	e.Attempts = r.snap.attempts[attemptKey(e.OrderID, e.Type)] + 1

	if err := s.log.AppendEntry(ctx, e); err != nil {
		if stdErrors.Is(err, ErrDuplicateEntry) {
			r.summary.AlreadyProcessed++
			log.Warn("reminder decided concurrently by another run", "status", e.Status)
			return
		}
		r.summary.Errors++
		log.Error("failed to append reminder log entry", "status", e.Status, "error", err)
		return
	}

	r.snap.decided[e.Key()] = true
	s.metrics.observeDecision(e.Type, e.Status)
	switch e.Status {
	case StatusSent:
		r.summary.Sent++
		r.snap.sentOrders[e.OrderID] = true
	case StatusSkipped:
		r.summary.Skipped++
	case StatusFailed:
		r.summary.Failed++
	}
	log.Info("reminder decided", "status", e.Status, "attempts", e.Attempts, "notes", e.Notes)
}
