// Package reminder runs the daily H-4/H-3/H-1 reminders and the unpaid-order auto-cancellation.
package reminder

import (
	"context"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	reminderDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/reminder"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type Type string

const (
	TypeH4 Type = "H-4"
	TypeH3 Type = "H-3"
	TypeH1 Type = "H-1"
)

// TypeForDaysDiff maps days until the event onto a reminder. Other distances have none.
func TypeForDaysDiff(days int) (Type, bool) {
	switch days {
	case 4:
		return TypeH4, true
	case 3:
		return TypeH3, true
	case 1:
		return TypeH1, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusSent    Status = "SENT"
	StatusSkipped Status = "SKIPPED"
	StatusFailed  Status = "FAILED"
)

// Entry is one decision for (order, type, day). Entries are never updated.
type Entry struct {
	ID       int64     `json:"id"`
	OrderID  string    `json:"order_id"`
	Type     Type      `json:"reminder_type"`
	Date     time.Time `json:"reminder_date"`
	Status   Status    `json:"status"`
	Attempts int       `json:"attempts"`
	Notes    string    `json:"notes,omitempty"`
	// CreatedAt is set by the store.
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies the same-day decision for an order and reminder type.
type Key struct {
	OrderID string
	Type    Type
	Date    string
}

func (e *Entry) Key() Key {
	return Key{OrderID: e.OrderID, Type: e.Type, Date: clock.FormatDate(e.Date)}
}

// ErrDuplicateEntry means another run already decided this key today.
var ErrDuplicateEntry = errors.NewConflictError("reminder already recorded for this order, type and day", errors.ErrCodeDuplicateReminderEntry)

// Log is the append-only reminder log, the only record of what was sent.
type Log interface {
	// AppendEntry returns ErrDuplicateEntry when the key already exists.
	AppendEntry(ctx context.Context, e *Entry) error
	ListAll(ctx context.Context) ([]*Entry, error)
	ListForDate(ctx context.Context, date time.Time) ([]*Entry, error)
}

func ToDataModel(e *Entry) *reminderDatamodel.LogEntry {
	return &reminderDatamodel.LogEntry{
		ID:           e.ID,
		OrderID:      e.OrderID,
		ReminderType: string(e.Type),
		ReminderDate: clock.FormatDate(e.Date),
		Status:       string(e.Status),
		Attempts:     e.Attempts,
		Notes:        e.Notes,
		CreatedAt:    e.CreatedAt,
	}
}

func FromDataModel(m *reminderDatamodel.LogEntry, loc *time.Location) *Entry {
	date, err := clock.ParseDate(m.ReminderDate, loc)
	if err != nil {
		date = time.Time{}
	}
	return &Entry{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Type:      Type(m.ReminderType),
		Date:      date,
		Status:    Status(m.Status),
		Attempts:  m.Attempts,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
	}
}

// snapshot is the log as read once at the start of a run.
type snapshot struct {
	// sentOrders holds every order with any SENT entry ever.
	sentOrders map[string]bool
	decided    map[Key]bool
	attempts   map[string]int
}

func newSnapshot(entries []*Entry, today string) snapshot {
	s := snapshot{
		sentOrders: map[string]bool{},
		decided:    map[Key]bool{},
		attempts:   map[string]int{},
	}
	for _, e := range entries {
		if e.Status == StatusSent {
			s.sentOrders[e.OrderID] = true
		}
		k := e.Key()
		if k.Date == today {
			s.decided[k] = true
		}
		s.attempts[attemptKey(e.OrderID, e.Type)]++
	}
	return s
}

func attemptKey(orderID string, t Type) string {
	return orderID + "|" + string(t)
}
