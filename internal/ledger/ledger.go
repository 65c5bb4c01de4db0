// Package ledger derives payment state from an order's money fields.
// Everything here is a pure function; callers persist the results.
package ledger

import (
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type PaymentStatus string

const (
	StatusUnpaid   PaymentStatus = "UNPAID"
	StatusDPPaid   PaymentStatus = "DP_PAID"
	StatusFullPaid PaymentStatus = "FULL_PAID"
)

const (
	// Events this close to confirmation must be paid in full immediately.
	FullPaymentOnlyWithinDays = 4
	// Deposit-paid orders must be settled this many days before the event.
	FullPaymentDueDaysBefore = 3
)

type Summary struct {
	TotalAmount      int64         `json:"total_amount"`
	PaidAmount       int64         `json:"paid_amount"`
	RemainingBalance int64         `json:"remaining_balance"`
	MinimumDeposit   int64         `json:"minimum_deposit"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
}

func Derive(totalAmount, paidAmount int64) (Summary, error) {
	if totalAmount < 0 {
		return Summary{}, errors.NewValidationFieldError("total_amount", "total_amount must not be negative", errors.ErrCodeInvalidAmount)
	}
	if paidAmount < 0 {
		return Summary{}, errors.NewValidationFieldError("paid_amount", "paid_amount must not be negative", errors.ErrCodeInvalidAmount)
	}

	return Summary{
		TotalAmount:      totalAmount,
		PaidAmount:       paidAmount,
		RemainingBalance: RemainingBalance(totalAmount, paidAmount),
		MinimumDeposit:   MinimumDeposit(totalAmount),
		PaymentStatus:    StatusOf(totalAmount, paidAmount),
	}, nil
}

func RemainingBalance(totalAmount, paidAmount int64) int64 {
	if paidAmount >= totalAmount {
		return 0
	}
	return totalAmount - paidAmount
}

// StatusOf checks paid == 0 first, so a zero-total order with nothing paid is UNPAID.
func StatusOf(totalAmount, paidAmount int64) PaymentStatus {
	switch {
	case paidAmount == 0:
		return StatusUnpaid
	case paidAmount >= totalAmount:
		return StatusFullPaid
	default:
		return StatusDPPaid
	}
}

// MinimumDeposit is ceil(total * 0.5).
func MinimumDeposit(totalAmount int64) int64 {
	if totalAmount <= 0 {
		return 0
	}
	return (totalAmount + 1) / 2
}

func TotalAmount(productTotal, packagingFee, deliveryFee int64) (int64, error) {
	fields := []struct {
		name   string
		amount int64
	}{
		{"product_total", productTotal},
		{"packaging_fee", packagingFee},
		{"delivery_fee", deliveryFee},
	}
	for _, f := range fields {
		if f.amount < 0 {
			return 0, errors.NewValidationFieldError(f.name, f.name+" must not be negative", errors.ErrCodeInvalidAmount)
		}
	}
	return productTotal + packagingFee + deliveryFee, nil
}

type Window struct {
	DaysUntilEvent int  `json:"days_until_event"`
	DepositAllowed bool `json:"deposit_allowed"`
	// FullPaymentDue is the last day to settle; equal to the confirmation day when no deposit is allowed.
	FullPaymentDue time.Time `json:"full_payment_due"`
}

// PaymentWindow applies the deposit rule for an order confirmed on confirmedOn.
// Both dates are date-only values in the business timezone.
func PaymentWindow(confirmedOn, eventDate time.Time) Window {
	days := clock.DaysBetween(confirmedOn, eventDate)
	if days <= FullPaymentOnlyWithinDays {
		return Window{DaysUntilEvent: days, DepositAllowed: false, FullPaymentDue: confirmedOn}
	}
	return Window{
		DaysUntilEvent: days,
		DepositAllowed: true,
		FullPaymentDue: eventDate.AddDate(0, 0, -FullPaymentDueDaysBefore),
	}
}
