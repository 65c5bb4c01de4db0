package menu

import "github.com/frahmantamala/order-assistant/pkg/money"

type ItemResponse struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Price          int64  `json:"price"`
	PriceFormatted string `json:"price_formatted"`
}

type MenuResponse struct {
	Items []ItemResponse `json:"items"`
}

func (i *Item) ToResponse() ItemResponse {
	return ItemResponse{
		Name:           i.Name,
		Description:    i.Description,
		Price:          i.Price,
		PriceFormatted: money.IDR(i.Price),
	}
}

type SaveItemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Price       int64  `json:"price" validate:"required,min=1"`
	IsActive    *bool  `json:"is_active"`
}

func (r SaveItemRequest) ToItem() *Item {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &Item{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		IsActive:    active,
	}
}
