package order

import "time"

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Order struct {
	ID               string     `gorm:"column:id;primaryKey;size:32"`
	CustomerName     string     `gorm:"column:customer_name;not null"`
	CustomerChatID   string     `gorm:"column:customer_chat_id"`
	EventDate        time.Time  `gorm:"column:event_date;type:date;not null;index"`
	Status           string     `gorm:"column:status;not null;index"`
	Items            []Item     `gorm:"column:items;type:text;serializer:json"`
	DeliveryMethod   string     `gorm:"column:delivery_method"`
	Notes            string     `gorm:"column:notes"`
	ProductTotal     int64      `gorm:"column:product_total;not null;default:0"`
	PackagingFee     int64      `gorm:"column:packaging_fee;not null;default:0"`
	DeliveryFee      int64      `gorm:"column:delivery_fee;not null;default:0"`
	TotalAmount      int64      `gorm:"column:total_amount;not null;default:0"`
	PaidAmount       int64      `gorm:"column:paid_amount;not null;default:0"`
	RemainingBalance int64      `gorm:"column:remaining_balance;not null;default:0"`
	PaymentStatus    string     `gorm:"column:payment_status;not null"`
	CancelReason     string     `gorm:"column:cancel_reason"`
	ConfirmedAt      *time.Time `gorm:"column:confirmed_at"`
	CancelledAt      *time.Time `gorm:"column:cancelled_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
