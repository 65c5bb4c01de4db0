package order

import (
	"context"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

type ServiceAPI interface {
	CreateOrder(ctx context.Context, dto CreateOrderDTO) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
	ConfirmOrder(ctx context.Context, id string) (*Order, ledger.Window, error)
	CancelOrder(ctx context.Context, id, reason string) (*Order, error)
	CompleteOrder(ctx context.Context, id string) (*Order, bool, error)
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

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var dto CreateOrderDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	o, err := h.Service.CreateOrder(r.Context(), dto)
	if err != nil {
		h.Logger.Warn("CreateOrder: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, ToResponse(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Service.ListOrders(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	status := r.URL.Query().Get("status")
	resp := OrdersResponse{Orders: make([]OrderResponse, 0, len(orders))}
	for _, o := range orders {
		if status != "" && string(o.Status) != status {
			continue
		}
		resp.Orders = append(resp.Orders, ToResponse(o))
	}
	resp.Count = len(resp.Orders)

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ToResponse(o))
}

func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, window, err := h.Service.ConfirmOrder(r.Context(), id)
	if err != nil {
		h.Logger.Warn("ConfirmOrder: service error", "order_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ConfirmOrderResponse{
		Order:         ToResponse(o),
		PaymentWindow: window,
	})
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var dto CancelOrderDTO
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &dto) {
		return
	}

	o, err := h.Service.CancelOrder(r.Context(), id, dto.Reason)
	if err != nil {
		h.Logger.Warn("CancelOrder: service error", "order_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransitionResponse{Order: ToResponse(o)})
}

func (h *Handler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, irregular, err := h.Service.CompleteOrder(r.Context(), id)
	if err != nil {
		h.Logger.Warn("CompleteOrder: service error", "order_id", id, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	resp := TransitionResponse{Order: ToResponse(o)}
	if irregular {
		resp.Warning = "order was completed without being confirmed"
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
