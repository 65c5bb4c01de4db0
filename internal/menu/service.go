package menu

import (
	"context"
	"fmt"
	"log/slog"

	errors "github.com/frahmantamala/order-assistant/internal"
	menuDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/menu"
	"github.com/frahmantamala/order-assistant/internal/order"
)

type RepositoryAPI interface {
	GetActive(ctx context.Context) ([]*menuDatamodel.MenuItem, error)
	Upsert(ctx context.Context, item *menuDatamodel.MenuItem) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) ListMenu(ctx context.Context) ([]*Item, error) {
	rows, err := s.repo.GetActive(ctx)
	if err != nil {
		s.logger.Error("failed to load menu", "error", err)
		return nil, err
	}

	items := make([]*Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, FromDataModel(row))
	}
	return items, nil
}

// PriceItems sums price x quantity over the order lines. Every line must name an active menu item.
func (s *Service) PriceItems(ctx context.Context, lines []order.Item) (int64, error) {
	items, err := s.ListMenu(ctx)
	if err != nil {
		return 0, err
	}

	prices := make(map[string]int64, len(items))
	for _, it := range items {
		prices[Key(it.Name)] = it.Price
	}

	var (
		total   int64
		unknown []errors.ValidationError
	)
	for i, line := range lines {
		price, ok := prices[Key(line.Name)]
		if !ok {
			unknown = append(unknown, errors.ValidationError{
				Field:   fmt.Sprintf("items[%d].name", i),
				Message: fmt.Sprintf("%q is not on the menu", line.Name),
				Code:    string(errors.ErrCodeUnknownMenuItem),
			})
			continue
		}
		total += price * int64(line.Quantity)
	}

	if len(unknown) > 0 {
		return 0, errors.NewValidationError("order contains items that are not on the menu", errors.ErrCodeUnknownMenuItem).
			WithDetails(errors.ValidationErrors{Errors: unknown})
	}
	return total, nil
}

// Save creates or updates a menu item by name.
func (s *Service) Save(ctx context.Context, item *Item) error {
	if appErr := validateItem(item); appErr != nil {
		return appErr
	}
	if err := s.repo.Upsert(ctx, ToDataModel(item)); err != nil {
		return fmt.Errorf("failed to save menu item %q: %w", item.Name, err)
	}
	s.logger.Info("menu item saved", "name", item.Name, "price", item.Price)
	return nil
}
