package payment

import "time"

// Record rows are insert-only.
type Record struct {
	PaymentID       string    `gorm:"column:payment_id;primaryKey;size:64"`
	OrderID         string    `gorm:"column:order_id;not null;index"`
	AmountInput     int64     `gorm:"column:amount_input;not null"`
	AmountConfirmed int64     `gorm:"column:amount_confirmed;not null"`
	Method          string    `gorm:"column:method;not null"`
	Status          string    `gorm:"column:status;not null"`
	ProofReference  *string   `gorm:"column:proof_reference"`
	CreatedBy       string    `gorm:"column:created_by;not null"`
	Notes           string    `gorm:"column:notes"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Record) TableName() string {
	return "payment_records"
}
