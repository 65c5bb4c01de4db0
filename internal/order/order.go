package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	orderDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/order"
	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type Status string

const (
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusWaiting             Status = "waiting"
	StatusConfirmed           Status = "confirmed"
	StatusCancelled           Status = "cancelled"
	StatusCompleted           Status = "completed"
)

func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingConfirmation, StatusWaiting, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Event string

const (
	EventConfirm    Event = "confirm"
	EventCancel     Event = "cancel"
	EventAutoCancel Event = "auto_cancel"
	EventComplete   Event = "complete"
)

type transition struct {
	to Status
	// irregular transitions are allowed but logged, operators sometimes skip steps
	irregular bool
}

var transitions = map[Event]map[Status]transition{
	EventConfirm: {
		StatusPendingConfirmation: {to: StatusConfirmed},
		StatusWaiting:             {to: StatusConfirmed},
	},
	EventCancel: {
		StatusPendingConfirmation: {to: StatusCancelled},
		StatusWaiting:             {to: StatusCancelled},
		StatusConfirmed:           {to: StatusCancelled},
	},
	EventAutoCancel: {
		StatusPendingConfirmation: {to: StatusCancelled},
		StatusWaiting:             {to: StatusCancelled},
		StatusConfirmed:           {to: StatusCancelled},
	},
	EventComplete: {
		StatusConfirmed:           {to: StatusCompleted},
		StatusPendingConfirmation: {to: StatusCompleted, irregular: true},
		StatusWaiting:             {to: StatusCompleted, irregular: true},
	},
}

var ErrInvalidTransition = errors.NewStateError("invalid order transition", errors.ErrCodeInvalidTransition)

type Item = orderDatamodel.Item

type Order struct {
	ID               string               `json:"id"`
	CustomerName     string               `json:"customer_name"`
	CustomerChatID   string               `json:"customer_chat_id,omitempty"`
	EventDate        time.Time            `json:"event_date"`
	Status           Status               `json:"status"`
	Items            []Item               `json:"items"`
	DeliveryMethod   string               `json:"delivery_method,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	ProductTotal     int64                `json:"product_total"`
	PackagingFee     int64                `json:"packaging_fee"`
	DeliveryFee      int64                `json:"delivery_fee"`
	TotalAmount      int64                `json:"total_amount"`
	PaidAmount       int64                `json:"paid_amount"`
	RemainingBalance int64                `json:"remaining_balance"`
	PaymentStatus    ledger.PaymentStatus `json:"payment_status"`
	CancelReason     string               `json:"cancel_reason,omitempty"`
	ConfirmedAt      *time.Time           `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Apply moves the order through the state machine. The order is untouched on error.
func (o *Order) Apply(ev Event, now time.Time, reason string) (irregular bool, err error) {
	t, ok := transitions[ev][o.Status]
	if !ok {
		return false, errors.NewStateError(
			fmt.Sprintf("cannot %s order %s in status %s", ev, o.ID, o.Status),
			errors.ErrCodeInvalidTransition,
		).WithDetails(map[string]string{
			"order_id": o.ID,
			"status":   string(o.Status),
			"event":    string(ev),
		})
	}

	o.Status = t.to
	o.UpdatedAt = now
	switch t.to {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
		o.CancelReason = reason
	case StatusCompleted:
		o.CompletedAt = &now
	}
	return t.irregular, nil
}

// ApplyPaid sets paid_amount and re-derives the dependent ledger fields.
func (o *Order) ApplyPaid(paidAmount int64) error {
	summary, err := ledger.Derive(o.TotalAmount, paidAmount)
	if err != nil {
		return err
	}
	o.PaidAmount = summary.PaidAmount
	o.RemainingBalance = summary.RemainingBalance
	o.PaymentStatus = summary.PaymentStatus
	return nil
}

func (o *Order) Ledger() ledger.Summary {
	return ledger.Summary{
		TotalAmount:      o.TotalAmount,
		PaidAmount:       o.PaidAmount,
		RemainingBalance: o.RemainingBalance,
		MinimumDeposit:   ledger.MinimumDeposit(o.TotalAmount),
		PaymentStatus:    o.PaymentStatus,
	}
}

func (o *Order) DaysUntilEvent(today time.Time) int {
	return clock.DaysBetween(today, o.EventDate)
}

// InitialStatus defers confirmation for events at least thresholdDays away.
func InitialStatus(eventDate, today time.Time, thresholdDays int) Status {
	if thresholdDays > 0 && clock.DaysBetween(today, eventDate) >= thresholdDays {
		return StatusWaiting
	}
	return StatusPendingConfirmation
}

const idCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewID returns an id like ORD-20240610-7QX2 using the creation date in loc.
func NewID(now time.Time, loc *time.Location) (string, error) {
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(idCharset))))
		if err != nil {
			return "", fmt.Errorf("generate order id: %w", err)
		}
		suffix[i] = idCharset[n.Int64()]
	}
	return fmt.Sprintf("ORD-%s-%s", now.In(loc).Format("20060102"), suffix), nil
}

func ToDataModel(o *Order) *orderDatamodel.Order {
	return &orderDatamodel.Order{
		ID:               o.ID,
		CustomerName:     o.CustomerName,
		CustomerChatID:   o.CustomerChatID,
		EventDate:        o.EventDate,
		Status:           string(o.Status),
		Items:            o.Items,
		DeliveryMethod:   o.DeliveryMethod,
		Notes:            o.Notes,
		ProductTotal:     o.ProductTotal,
		PackagingFee:     o.PackagingFee,
		DeliveryFee:      o.DeliveryFee,
		TotalAmount:      o.TotalAmount,
		PaidAmount:       o.PaidAmount,
		RemainingBalance: o.RemainingBalance,
		PaymentStatus:    string(o.PaymentStatus),
		CancelReason:     o.CancelReason,
		ConfirmedAt:      o.ConfirmedAt,
		CancelledAt:      o.CancelledAt,
		CompletedAt:      o.CompletedAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// FromDataModel anchors event_date in loc; DATE columns come back without a meaningful zone.
func FromDataModel(m *orderDatamodel.Order, loc *time.Location) *Order {
	return &Order{
		ID:               m.ID,
		CustomerName:     m.CustomerName,
		CustomerChatID:   m.CustomerChatID,
		EventDate:        clock.CivilDate(m.EventDate, loc),
		Status:           Status(m.Status),
		Items:            m.Items,
		DeliveryMethod:   m.DeliveryMethod,
		Notes:            m.Notes,
		ProductTotal:     m.ProductTotal,
		PackagingFee:     m.PackagingFee,
		DeliveryFee:      m.DeliveryFee,
		TotalAmount:      m.TotalAmount,
		PaidAmount:       m.PaidAmount,
		RemainingBalance: m.RemainingBalance,
		PaymentStatus:    ledger.PaymentStatus(m.PaymentStatus),
		CancelReason:     m.CancelReason,
		ConfirmedAt:      m.ConfirmedAt,
		CancelledAt:      m.CancelledAt,
		CompletedAt:      m.CompletedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
