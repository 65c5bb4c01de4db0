package postgres

import (
	"context"

	"gorm.io/gorm"

	paymentDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/payment"
	"github.com/frahmantamala/order-assistant/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) payment.RecordStore {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Append(ctx context.Context, rec *payment.Record) error {
	row := payment.ToDataModel(rec)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	rec.CreatedAt = row.CreatedAt
	rec.UpdatedAt = row.UpdatedAt
	return nil
}

// ListByOrder returns records in the order they were written. Payment ids are time-ordered, so they break ties.
func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]*payment.Record, error) {
	var rows []*paymentDatamodel.Record
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("payment_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	records := make([]*payment.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, payment.FromDataModel(row))
	}
	return records, nil
}
