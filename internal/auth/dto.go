package auth

import (
	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
)

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshTokenDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (d LoginDTO) Validate() *errors.AppError {
	return validation.Struct(d)
}

func (d RefreshTokenDTO) Validate() *errors.AppError {
	return validation.Struct(d)
}
