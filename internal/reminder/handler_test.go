package reminder_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/order-assistant/internal/reminder"
	reminderPostgres "github.com/frahmantamala/order-assistant/internal/reminder/postgres"
	"github.com/frahmantamala/order-assistant/internal/transport"
)

type stubRunner struct {
	asOf *time.Time
}

func (s *stubRunner) RunDailyReminders(_ context.Context, asOf *time.Time) (reminder.Summary, error) {
	s.asOf = asOf
	date := "today"
	if asOf != nil {
		date = asOf.Format("2006-01-02")
	}
	return reminder.Summary{Date: date, Sent: 2}, nil
}

var _ = Describe("Reminder Handler", func() {
	var (
		router *chi.Mux
		runner *stubRunner
	)

	BeforeEach(func() {
		jakarta := time.FixedZone("WIB", 7*3600)
		runner = &stubRunner{}
		log := reminderPostgres.NewReminderLogRepository(newTestDB(), jakarta)
		h := reminder.NewHandler(transport.NewBaseHandler(quietLogger()), runner, log, jakarta)

		router = chi.NewRouter()
		router.Post("/reminders/run", h.RunReminders)
		router.Get("/reminders/log", h.ListLog)
	})

	It("runs for an explicit date and returns the summary", func() {
		req := httptest.NewRequest(http.MethodPost, "/reminders/run", strings.NewReader(`{"date":"2024-06-14"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var summary reminder.Summary
		Expect(json.NewDecoder(w.Body).Decode(&summary)).To(Succeed())
		Expect(summary.Date).To(Equal("2024-06-14"))
		Expect(runner.asOf).NotTo(BeNil())
	})

	It("runs for today without a body", func() {
		req := httptest.NewRequest(http.MethodPost, "/reminders/run", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(runner.asOf).To(BeNil())
	})

	It("rejects a malformed date", func() {
		req := httptest.NewRequest(http.MethodPost, "/reminders/run?date=14-06-2024", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("lists the log for a day", func() {
		req := httptest.NewRequest(http.MethodGet, "/reminders/log?date=2024-06-14", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp reminder.LogResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Date).To(Equal("2024-06-14"))
		Expect(resp.Count).To(BeZero())
	})
})
