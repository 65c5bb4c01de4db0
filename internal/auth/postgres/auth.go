package postgres

import (
	"context"
	stdErrors "errors"

	"gorm.io/gorm"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/auth"
	userDatamodel "github.com/frahmantamala/order-assistant/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{db: db}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("user not found", errors.ErrCodeUserNotFound)
		}
		return nil, err
	}
	return &auth.Credentials{
		UserID:       u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
	}, nil
}

func (r *Repository) GetUserWithPermissions(ctx context.Context, userID int64) (*auth.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NewNotFoundError("user not found", errors.ErrCodeUserNotFound)
		}
		return nil, err
	}

	var permissions []string
	err := r.db.WithContext(ctx).
		Table("permissions p").
		Select("p.name").
		Joins("JOIN user_permissions up ON p.id = up.permission_id").
		Where("up.user_id = ?", userID).
		Order("p.name").
		Pluck("p.name", &permissions).Error
	if err != nil {
		return nil, err
	}

	return &auth.User{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		ChatID:      u.ChatID,
		IsActive:    u.IsActive,
		Permissions: permissions,
	}, nil
}
