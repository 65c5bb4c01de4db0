package order

import (
	"github.com/frahmantamala/order-assistant/internal/ledger"
)

type ItemDTO struct {
	Name     string `json:"name" validate:"required,max=120"`
	Quantity int    `json:"quantity" validate:"min=1"`
}

type CreateOrderDTO struct {
	CustomerName   string    `json:"customer_name" validate:"required,max=120"`
	CustomerChatID string    `json:"customer_chat_id" validate:"max=64"`
	EventDate      string    `json:"event_date" validate:"required,datetime=2006-01-02"`
	Items          []ItemDTO `json:"items" validate:"required,min=1,dive"`
	DeliveryMethod string    `json:"delivery_method" validate:"omitempty,oneof=pickup delivery"`
	Notes          string    `json:"notes" validate:"max=1000"`
	// ProductTotal is derived from the menu when omitted.
	ProductTotal int64 `json:"product_total" validate:"gte=0"`
	PackagingFee int64 `json:"packaging_fee" validate:"gte=0"`
	DeliveryFee  int64 `json:"delivery_fee" validate:"gte=0"`
}

type CancelOrderDTO struct {
	Reason string `json:"reason" validate:"max=500"`
}

type OrderResponse struct {
	*Order
	EventDate      string `json:"event_date"`
	MinimumDeposit int64  `json:"minimum_deposit"`
}

func ToResponse(o *Order) OrderResponse {
	return OrderResponse{
		Order:          o,
		EventDate:      o.EventDate.Format("2006-01-02"),
		MinimumDeposit: ledger.MinimumDeposit(o.TotalAmount),
	}
}

type OrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
	Count  int             `json:"count"`
}

type ConfirmOrderResponse struct {
	Order         OrderResponse `json:"order"`
	PaymentWindow ledger.Window `json:"payment_window"`
}

type TransitionResponse struct {
	Order   OrderResponse `json:"order"`
	Warning string        `json:"warning,omitempty"`
}
