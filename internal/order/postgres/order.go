package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/frahmantamala/order-assistant/internal"
	orderDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/order"
	"github.com/frahmantamala/order-assistant/internal/order"
)

type OrderRepository struct {
	db  *gorm.DB
	loc *time.Location
}

func NewOrderRepository(db *gorm.DB, loc *time.Location) order.RepositoryAPI {
	return &OrderRepository{db: db, loc: loc}
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var row orderDatamodel.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, err
	}
	return order.FromDataModel(&row, r.loc), nil
}

// ListAll returns orders oldest first.
func (r *OrderRepository) ListAll(ctx context.Context, limit int) ([]*order.Order, error) {
	var rows []*orderDatamodel.Order
	q := r.db.WithContext(ctx).Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, order.FromDataModel(row, r.loc))
	}
	return orders, nil
}

func (r *OrderRepository) ListOpen(ctx context.Context) ([]*order.Order, error) {
	var rows []*orderDatamodel.Order
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{string(order.StatusCancelled), string(order.StatusCompleted)}).
		Order("event_date ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, order.FromDataModel(row, r.loc))
	}
	return orders, nil
}

func (r *OrderRepository) Upsert(ctx context.Context, o *order.Order) (*order.Order, error) {
	row := order.ToDataModel(o)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(mutableColumns),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return order.FromDataModel(row, r.loc), nil
}

// created_at is left out so an upsert never rewrites it.
var mutableColumns = []string{
	"customer_name", "customer_chat_id", "event_date", "status", "items",
	"delivery_method", "notes", "product_total", "packaging_fee", "delivery_fee",
	"total_amount", "paid_amount", "remaining_balance", "payment_status",
	"cancel_reason", "confirmed_at", "cancelled_at", "completed_at", "updated_at",
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": at,
	}
	switch status {
	case order.StatusConfirmed:
		updates["confirmed_at"] = at
	case order.StatusCancelled:
		updates["cancelled_at"] = at
	case order.StatusCompleted:
		updates["completed_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&orderDatamodel.Order{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrOrderNotFound
	}
	return nil
}
