package payment

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

type ServiceAPI interface {
	RecordPayment(ctx context.Context, in RecordPaymentInput) (*RecordResult, error)
	ResolvePendingConfirmation(ctx context.Context, actorID, orderID string, accept bool) (*RecordResult, error)
	ListPayments(ctx context.Context, orderID string) ([]*Record, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func statusFor(result *RecordResult) int {
	if result.Status == ResultPendingConfirmation {
		return http.StatusAccepted
	}
	return http.StatusCreated
}

// RecordPayment handles POST /api/v1/orders/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var dto RecordPaymentDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor := errors.ActorFromContext(r.Context())
	result, err := h.Service.RecordPayment(r.Context(), RecordPaymentInput{
		OrderID:        orderID,
		ActorID:        actor,
		ClaimedAmount:  dto.Amount,
		ProofReference: dto.ProofReference,
		Method:         Method(dto.Method),
		Notes:          dto.Notes,
	})
	if err != nil {
		h.Logger.Warn("RecordPayment: service error", "order_id", orderID, "actor", actor, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, statusFor(result), result)
}

// ConfirmPayment handles POST /api/v1/orders/{id}/payments/confirmation
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var dto ConfirmationDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	actor := errors.ActorFromContext(r.Context())
	result, err := h.Service.ResolvePendingConfirmation(r.Context(), actor, orderID, *dto.Accept)
	if err != nil {
		h.Logger.Warn("ConfirmPayment: service error", "order_id", orderID, "actor", actor, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

// ListPayments handles GET /api/v1/orders/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	records, err := h.Service.ListPayments(r.Context(), orderID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if records == nil {
		records = []*Record{}
	}

	h.WriteJSON(w, http.StatusOK, PaymentsResponse{
		OrderID:  orderID,
		Payments: records,
		Count:    len(records),
	})
}
