package menu

import (
	"context"
	"net/http"

	"github.com/frahmantamala/order-assistant/internal/transport"
)

type ServiceAPI interface {
	ListMenu(ctx context.Context) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
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

func (h *Handler) GetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.ListMenu(r.Context())
	if err != nil {
		h.Logger.Error("GetMenu: failed to load menu", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	resp := MenuResponse{Items: make([]ItemResponse, 0, len(items))}
	for _, it := range items {
		resp.Items = append(resp.Items, it.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// SaveItem handles PUT /api/v1/menu
func (h *Handler) SaveItem(w http.ResponseWriter, r *http.Request) {
	var req SaveItemRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	item := req.ToItem()
	if err := h.Service.Save(r.Context(), item); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, item.ToResponse())
}
