package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentRecorded    = "payment.recorded"
	EventTypePaymentNeedsReview = "payment.needs_review"
)

type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID        string `json:"payment_id"`
	OrderID          string `json:"order_id"`
	AmountConfirmed  int64  `json:"amount_confirmed"`
	PaidAmount       int64  `json:"paid_amount"`
	RemainingBalance int64  `json:"remaining_balance"`
	PaymentStatus    string `json:"payment_status"`
	RecordedBy       string `json:"recorded_by"`
}

func NewPaymentRecordedEvent(paymentID, orderID string, amountConfirmed, paidAmount, remaining int64, paymentStatus, recordedBy string) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentRecorded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":        paymentID,
				"order_id":          orderID,
				"amount_confirmed":  amountConfirmed,
				"paid_amount":       paidAmount,
				"remaining_balance": remaining,
				"payment_status":    paymentStatus,
				"recorded_by":       recordedBy,
			},
		},
		PaymentID:        paymentID,
		OrderID:          orderID,
		AmountConfirmed:  amountConfirmed,
		PaidAmount:       paidAmount,
		RemainingBalance: remaining,
		PaymentStatus:    paymentStatus,
		RecordedBy:       recordedBy,
	}
}

type PaymentNeedsReviewEvent struct {
	BaseEvent
	OrderID         string `json:"order_id"`
	ActorID         string `json:"actor_id"`
	ExpectedAmount  int64  `json:"expected_amount"`
	CandidateAmount int64  `json:"candidate_amount"`
}

func NewPaymentNeedsReviewEvent(orderID, actorID string, expected, candidate int64) *PaymentNeedsReviewEvent {
	return &PaymentNeedsReviewEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentNeedsReview,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":         orderID,
				"actor_id":         actorID,
				"expected_amount":  expected,
				"candidate_amount": candidate,
			},
		},
		OrderID:         orderID,
		ActorID:         actorID,
		ExpectedAmount:  expected,
		CandidateAmount: candidate,
	}
}
