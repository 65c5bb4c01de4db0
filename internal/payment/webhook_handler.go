package payment

import (
	"context"
	"net/http"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/common/validation"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

// ProofSubmission is a chat-originated payment proof waiting to be reconciled.
type ProofSubmission struct {
	ChatID         string
	OrderID        string
	ProofReference string
	ClaimedAmount  int64
}

// ProofSubmitter hands a proof to background processing. Submit must not block.
type ProofSubmitter interface {
	Submit(ctx context.Context, p ProofSubmission) error
}

type WebhookHandler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	Submitter ProofSubmitter
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, service ServiceAPI, submitter ProofSubmitter) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: baseHandler,
		Service:     service,
		Submitter:   submitter,
	}
}

// HandlePaymentProof handles POST /webhooks/chat/payment-proof.
// The proof is queued and the customer gets the outcome as a chat message.
func (h *WebhookHandler) HandlePaymentProof(w http.ResponseWriter, r *http.Request) {
	var dto ProofWebhookDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, appErr)
		return
	}

	err := h.Submitter.Submit(r.Context(), ProofSubmission{
		ChatID:         dto.ChatID,
		OrderID:        dto.OrderID,
		ProofReference: dto.ProofReference,
		ClaimedAmount:  dto.Amount,
	})
	if err != nil {
		h.Logger.Warn("HandlePaymentProof: submit failed", "order_id", dto.OrderID, "chat_id", dto.ChatID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("payment proof queued", "order_id", dto.OrderID, "chat_id", dto.ChatID)
	h.WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"order_id": dto.OrderID,
	})
}

// HandleConfirmationReply handles POST /webhooks/chat/confirmation with a YES/NO answer.
func (h *WebhookHandler) HandleConfirmationReply(w http.ResponseWriter, r *http.Request) {
	var dto ReplyWebhookDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if appErr := validation.Struct(dto); appErr != nil {
		h.HandleServiceError(w, appErr)
		return
	}

	accept, ok := ParseConfirmationReply(dto.Text)
	if !ok {
		h.HandleServiceError(w, errors.NewValidationFieldError("text", "reply with YES or NO", errors.ErrCodeValidationFailed))
		return
	}

	result, err := h.Service.ResolvePendingConfirmation(r.Context(), dto.ChatID, dto.OrderID, accept)
	if err != nil {
		h.Logger.Warn("HandleConfirmationReply: service error", "chat_id", dto.ChatID, "order_id", dto.OrderID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}
