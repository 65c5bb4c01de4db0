package menu

import (
	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
)

func validateItem(item *Item) *errors.AppError {
	v := validation.NewValidator()
	v.Field("name", item.Name).Required().MaxLength(100)
	v.Field("price", item.Price).MinInt(1, errors.ErrCodeInvalidAmount).MaxInt(1_000_000_000, errors.ErrCodeInvalidAmount)
	return v.Validate()
}
