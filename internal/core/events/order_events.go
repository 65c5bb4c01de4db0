package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeOrderConfirmed = "order.confirmed"
	EventTypeOrderCancelled = "order.cancelled"
	EventTypeOrderCompleted = "order.completed"
)

type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        string `json:"order_id"`
	CustomerName   string `json:"customer_name"`
	CustomerChatID string `json:"customer_chat_id"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status"`
	Reason         string `json:"reason,omitempty"`
	Automatic      bool   `json:"automatic"`
}

type OrderStatusChange struct {
	OrderID        string
	CustomerName   string
	CustomerChatID string
	FromStatus     string
	ToStatus       string
	Reason         string
	Automatic      bool
}

func NewOrderStatusChangedEvent(eventType string, c OrderStatusChange) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":    c.OrderID,
				"from_status": c.FromStatus,
				"to_status":   c.ToStatus,
				"reason":      c.Reason,
				"automatic":   c.Automatic,
			},
		},
		OrderID:        c.OrderID,
		CustomerName:   c.CustomerName,
		CustomerChatID: c.CustomerChatID,
		FromStatus:     c.FromStatus,
		ToStatus:       c.ToStatus,
		Reason:         c.Reason,
		Automatic:      c.Automatic,
	}
}
