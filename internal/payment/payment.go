package payment

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	paymentDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/payment"
)

type Method string

const (
	MethodTransfer Method = "transfer"
	MethodCash     Method = "cash"
	MethodQRIS     Method = "qris"
	MethodOther    Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodTransfer, MethodCash, MethodQRIS, MethodOther:
		return true
	}
	return false
}

type RecordStatus string

const (
	RecordConfirmed     RecordStatus = "confirmed"
	RecordRejected      RecordStatus = "rejected"
	RecordPendingReview RecordStatus = "pending_review"
)

// Record is one payment attempt. Records are appended and never changed.
type Record struct {
	PaymentID       string       `json:"payment_id"`
	OrderID         string       `json:"order_id"`
	AmountInput     int64        `json:"amount_input"`
	AmountConfirmed int64        `json:"amount_confirmed"`
	Method          Method       `json:"method"`
	Status          RecordStatus `json:"status"`
	ProofReference  *string      `json:"proof_reference,omitempty"`
	CreatedBy       string       `json:"created_by"`
	Notes           string       `json:"notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// NewPaymentID is time-ordered so ids sort by creation.
func NewPaymentID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate payment id: %w", err)
	}
	return "PAY-" + id.String(), nil
}

// ConfirmedTotal sums amount_confirmed over confirmed records.
func ConfirmedTotal(records []*Record) int64 {
	var total int64
	for _, r := range records {
		if r.Status == RecordConfirmed {
			total += r.AmountConfirmed
		}
	}
	return total
}

func ToDataModel(r *Record) *paymentDatamodel.Record {
	return &paymentDatamodel.Record{
		PaymentID:       r.PaymentID,
		OrderID:         r.OrderID,
		AmountInput:     r.AmountInput,
		AmountConfirmed: r.AmountConfirmed,
		Method:          string(r.Method),
		Status:          string(r.Status),
		ProofReference:  r.ProofReference,
		CreatedBy:       r.CreatedBy,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func FromDataModel(m *paymentDatamodel.Record) *Record {
	return &Record{
		PaymentID:       m.PaymentID,
		OrderID:         m.OrderID,
		AmountInput:     m.AmountInput,
		AmountConfirmed: m.AmountConfirmed,
		Method:          Method(m.Method),
		Status:          RecordStatus(m.Status),
		ProofReference:  m.ProofReference,
		CreatedBy:       m.CreatedBy,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
