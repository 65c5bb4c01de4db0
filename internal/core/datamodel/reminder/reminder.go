package reminder

import "time"

type LogEntry struct {
	ID           int64     `gorm:"primaryKey"`
	OrderID      string    `gorm:"column:order_id;not null;uniqueIndex:idx_reminder_log_key,priority:1"`
	ReminderType string    `gorm:"column:reminder_type;size:8;not null;uniqueIndex:idx_reminder_log_key,priority:2"`
	ReminderDate string    `gorm:"column:reminder_date;size:10;not null;uniqueIndex:idx_reminder_log_key,priority:3"`
	Status       string    `gorm:"column:status;not null"`
	Attempts     int       `gorm:"column:attempts;not null;default:1"`
	Notes        string    `gorm:"column:notes"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (LogEntry) TableName() string {
	return "reminder_logs"
}
