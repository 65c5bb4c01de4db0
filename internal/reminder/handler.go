package reminder

import (
	"net/http"
	"time"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/transport"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type RunRequest struct {
	// Date overrides today, YYYY-MM-DD. Used for operational recovery.
	Date string `json:"date"`
}

type LogResponse struct {
	Date    string   `json:"date"`
	Entries []*Entry `json:"entries"`
	Count   int      `json:"count"`
}

type Handler struct {
	*transport.BaseHandler
	Runner   DailyRunner
	Log      Log
	Location *time.Location
}

func NewHandler(baseHandler *transport.BaseHandler, runner DailyRunner, log Log, loc *time.Location) *Handler {
	return &Handler{BaseHandler: baseHandler, Runner: runner, Log: log, Location: loc}
}

// RunReminders handles POST /api/v1/reminders/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 && !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.Date == "" {
		req.Date = r.URL.Query().Get("date")
	}

	var asOf *time.Time
	if req.Date != "" {
		d, err := clock.ParseDate(req.Date, h.Location)
		if err != nil {
			h.HandleServiceError(w, errors.NewValidationFieldError("date", err.Error(), errors.ErrCodeInvalidDate))
			return
		}
		asOf = &d
	}

	h.Logger.Info("manual reminder run requested", "date", req.Date, "actor", errors.ActorFromContext(r.Context()))
	summary, err := h.Runner.RunDailyReminders(r.Context(), asOf)
	if err != nil {
		h.HandleServiceError(w, errors.NewInternalError("reminder run failed", err))
		return
	}
	h.WriteJSON(w, http.StatusOK, summary)
}

// ListLog handles GET /api/v1/reminders/log?date=YYYY-MM-DD (today when omitted)
func (h *Handler) ListLog(w http.ResponseWriter, r *http.Request) {
	date := clock.DateOf(time.Now(), h.Location)
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := clock.ParseDate(q, h.Location)
		if err != nil {
			h.HandleServiceError(w, errors.NewValidationFieldError("date", err.Error(), errors.ErrCodeInvalidDate))
			return
		}
		date = d
	}

	entries, err := h.Log.ListForDate(r.Context(), date)
	if err != nil {
		h.HandleServiceError(w, errors.NewInternalError("failed to read reminder log", err))
		return
	}
	h.WriteJSON(w, http.StatusOK, LogResponse{
		Date:    clock.FormatDate(date),
		Entries: entries,
		Count:   len(entries),
	})
}
