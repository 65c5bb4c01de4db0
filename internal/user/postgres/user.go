package postgres

import (
	"context"
	stdErrors "errors"

	"gorm.io/gorm"

	errors "github.com/frahmantamala/order-assistant/internal"
	userDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/user"
	"github.com/frahmantamala/order-assistant/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.Repository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, userID int64) (*user.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("user not found", errors.ErrCodeUserNotFound)
		}
		return nil, err
	}

	perms, err := r.permissionsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.FromDataModel(&u, perms), nil
}

func (r *UserRepository) ListWithPermission(ctx context.Context, permission string) ([]*user.User, error) {
	var rows []userDatamodel.User
	err := r.db.WithContext(ctx).
		Joins("JOIN user_permissions up ON up.user_id = users.id").
		Joins("JOIN permissions p ON p.id = up.permission_id").
		Where("p.name = ? AND users.is_active = ?", permission, true).
		Order("users.id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	users := make([]*user.User, 0, len(rows))
	for i := range rows {
		users = append(users, user.FromDataModel(&rows[i], []string{permission}))
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User, permissions []string) (*user.User, error) {
	dm := user.ToDataModel(u)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dm).Error; err != nil {
			return err
		}
		if !u.IsActive {
			if err := tx.Model(dm).Update("is_active", false).Error; err != nil {
				return err
			}
		}
		for _, name := range permissions {
			p := userDatamodel.Permission{Name: name}
			if err := tx.Where(userDatamodel.Permission{Name: name}).FirstOrCreate(&p).Error; err != nil {
				return err
			}
			if err := tx.Create(&userDatamodel.UserPermission{UserID: dm.ID, PermissionID: p.ID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, dm.ID)
}

func (r *UserRepository) permissionsOf(ctx context.Context, userID int64) ([]string, error) {
	var perms []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Joins("JOIN user_permissions up ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Order("p.name").
		Pluck("p.name", &perms).Error
	return perms, err
}
