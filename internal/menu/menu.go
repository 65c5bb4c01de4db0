package menu

import (
	"strings"
	"time"

	menuDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/menu"
)

type Item struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Key normalises a menu name for lookups so "Nasi Box " and "nasi box" match.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func ToDataModel(i *Item) *menuDatamodel.MenuItem {
	return &menuDatamodel.MenuItem{
		ID:          i.ID,
		Name:        i.Name,
		Description: i.Description,
		Price:       i.Price,
		IsActive:    i.IsActive,
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func FromDataModel(m *menuDatamodel.MenuItem) *Item {
	return &Item{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
