package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	reminderDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/reminder"
	"github.com/frahmantamala/order-assistant/internal/reminder"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type ReminderLogRepository struct {
	db  *gorm.DB
	loc *time.Location
}

func NewReminderLogRepository(db *gorm.DB, loc *time.Location) reminder.Log {
	return &ReminderLogRepository{db: db, loc: loc}
}

// AppendEntry relies on the unique (order_id, reminder_type, reminder_date) index, so two runs
// racing on the same key cannot both write a row. The gorm connection must set TranslateError.
func (r *ReminderLogRepository) AppendEntry(ctx context.Context, e *reminder.Entry) error {
	row := reminder.ToDataModel(e)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return reminder.ErrDuplicateEntry
		}
		return err
	}
	e.ID = row.ID
	e.CreatedAt = row.CreatedAt
	return nil
}

func (r *ReminderLogRepository) ListAll(ctx context.Context) ([]*reminder.Entry, error) {
	var rows []*reminderDatamodel.LogEntry
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toEntries(rows), nil
}

func (r *ReminderLogRepository) ListForDate(ctx context.Context, date time.Time) ([]*reminder.Entry, error) {
	var rows []*reminderDatamodel.LogEntry
	err := r.db.WithContext(ctx).
		Where("reminder_date = ?", clock.FormatDate(date)).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.toEntries(rows), nil
}

func (r *ReminderLogRepository) toEntries(rows []*reminderDatamodel.LogEntry) []*reminder.Entry {
	entries := make([]*reminder.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, reminder.FromDataModel(row, r.loc))
	}
	return entries
}
