package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	menuDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/menu"
	"github.com/frahmantamala/order-assistant/internal/menu"
)

type MenuRepository struct {
	db *gorm.DB
}

func NewMenuRepository(db *gorm.DB) menu.RepositoryAPI {
	return &MenuRepository{db: db}
}

func (r *MenuRepository) GetActive(ctx context.Context) ([]*menuDatamodel.MenuItem, error) {
	var items []*menuDatamodel.MenuItem
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *MenuRepository) Upsert(ctx context.Context, item *menuDatamodel.MenuItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "price", "is_active", "updated_at"}),
		}).Create(item).Error; err != nil {
			return err
		}
		// is_active has a column default, so gorm drops a false value on insert
		if item.IsActive {
			return nil
		}
		return tx.Model(&menuDatamodel.MenuItem{}).Where("name = ?", item.Name).Update("is_active", false).Error
	})
}
