package payment

import (
	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
)

type RecordPaymentDTO struct {
	// Amount is the claimed amount; zero means "whatever is still owed".
	Amount         int64  `json:"amount" validate:"gte=0,lte=1000000000"`
	Method         string `json:"method" validate:"omitempty,oneof=transfer cash qris other"`
	ProofReference string `json:"proof_reference" validate:"max=512"`
	Notes          string `json:"notes" validate:"max=1000"`
}

func (d RecordPaymentDTO) Validate() error {
	if appErr := validation.Struct(d); appErr != nil {
		return appErr
	}
	return nil
}

type ConfirmationDTO struct {
	Accept *bool `json:"accept"`
}

func (d ConfirmationDTO) Validate() error {
	if d.Accept == nil {
		return errors.NewValidationFieldError("accept", "accept is required", errors.ErrCodeValidationFailed)
	}
	return nil
}

// ProofWebhookDTO is what the chat gateway posts when a customer sends a transfer receipt.
type ProofWebhookDTO struct {
	ChatID         string `json:"chat_id" validate:"required,max=64"`
	OrderID        string `json:"order_id" validate:"required,max=64"`
	ProofReference string `json:"proof_reference" validate:"required,max=512"`
	Amount         int64  `json:"amount" validate:"gte=0,lte=1000000000"`
}

type ReplyWebhookDTO struct {
	ChatID  string `json:"chat_id" validate:"required,max=64"`
	OrderID string `json:"order_id" validate:"max=64"`
	Text    string `json:"text" validate:"required,max=64"`
}

type PaymentsResponse struct {
	OrderID  string    `json:"order_id"`
	Payments []*Record `json:"payments"`
	Count    int       `json:"count"`
}
