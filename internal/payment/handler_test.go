package payment_test

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

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/lock"
	orderPostgres "github.com/frahmantamala/order-assistant/internal/order/postgres"
	"github.com/frahmantamala/order-assistant/internal/payment"
	paymentPostgres "github.com/frahmantamala/order-assistant/internal/payment/postgres"
	"github.com/frahmantamala/order-assistant/internal/transport"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type queueStub struct {
	submitted []payment.ProofSubmission
	err       error
}

func (q *queueStub) Submit(_ context.Context, p payment.ProofSubmission) error {
	if q.err != nil {
		return q.err
	}
	q.submitted = append(q.submitted, p)
	return nil
}

var _ = Describe("Payment Handlers", func() {
	var (
		router    *chi.Mux
		queue     *queueStub
		extractor *stubExtractor
	)

	BeforeEach(func() {
		jakarta := time.FixedZone("WIB", 7*3600)
		clk := clock.NewManual(time.Date(2024, 6, 10, 9, 0, 0, 0, jakarta))
		db := newTestDB()
		orders := orderPostgres.NewOrderRepository(db, jakarta)
		seedOrder(orders, "ORD-20240610-AAAA", 1000000, time.Date(2024, 6, 20, 0, 0, 0, 0, jakarta))

		extractor = &stubExtractor{}
		service := payment.NewService(orders, paymentPostgres.NewPaymentRepository(db), payment.NewMemoryPendingStore(clk),
			extractor, lock.NewMemoryGuard(time.Minute, clk), nil, clk, payment.Config{}, quietLogger())

		base := transport.NewBaseHandler(quietLogger())
		handler := payment.NewHandler(base, service)
		queue = &queueStub{}
		webhooks := payment.NewWebhookHandler(base, service, queue)

		router = chi.NewRouter()
		router.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					next.ServeHTTP(w, r.WithContext(errors.ContextWithActor(r.Context(), "admin-1")))
				})
			})
			r.Post("/orders/{id}/payments", handler.RecordPayment)
			r.Get("/orders/{id}/payments", handler.ListPayments)
			r.Post("/orders/{id}/payments/confirmation", handler.ConfirmPayment)
		})
		router.Post("/webhooks/chat/payment-proof", webhooks.HandlePaymentProof)
		router.Post("/webhooks/chat/confirmation", webhooks.HandleConfirmationReply)
	})

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("records a payment with 201 and lists it back", func() {
		w := post("/orders/ORD-20240610-AAAA/payments", `{"amount":500000,"method":"cash"}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var result payment.RecordResult
		Expect(json.NewDecoder(w.Body).Decode(&result)).To(Succeed())
		Expect(result.Payment.CreatedBy).To(Equal("admin-1"))
		Expect(result.Ledger.RemainingBalance).To(Equal(int64(500000)))

		req := httptest.NewRequest(http.MethodGet, "/orders/ORD-20240610-AAAA/payments", nil)
		lw := httptest.NewRecorder()
		router.ServeHTTP(lw, req)
		Expect(lw.Code).To(Equal(http.StatusOK))

		var list payment.PaymentsResponse
		Expect(json.NewDecoder(lw.Body).Decode(&list)).To(Succeed())
		Expect(list.Count).To(Equal(1))
	})

	It("answers 202 for a suspicious amount and 201 once confirmed", func() {
		extractor.candidates = []payment.Candidate{{Amount: 100000, Provenance: payment.ProvenancePrefixed}}

		w := post("/orders/ORD-20240610-AAAA/payments", `{"proof_reference":"proof-1"}`)
		Expect(w.Code).To(Equal(http.StatusAccepted))

		w = post("/orders/ORD-20240610-AAAA/payments/confirmation", `{"accept":false}`)
		Expect(w.Code).To(Equal(http.StatusCreated))
	})

	It("rejects an invalid method", func() {
		w := post("/orders/ORD-20240610-AAAA/payments", `{"amount":1000,"method":"cheque"}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("requires accept on the confirmation endpoint", func() {
		w := post("/orders/ORD-20240610-AAAA/payments/confirmation", `{}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("answers 404 when there is nothing to confirm", func() {
		w := post("/orders/ORD-20240610-AAAA/payments/confirmation", `{"accept":true}`)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	Describe("chat webhooks", func() {
		It("queues a payment proof", func() {
			w := post("/webhooks/chat/payment-proof", `{"chat_id":"6281234","order_id":"ORD-20240610-AAAA","proof_reference":"proof-9"}`)
			Expect(w.Code).To(Equal(http.StatusAccepted))
			Expect(queue.submitted).To(HaveLen(1))
			Expect(queue.submitted[0].ChatID).To(Equal("6281234"))
		})

		It("answers 503 when the queue is full", func() {
			queue.err = errors.NewUnavailableError("payment proof queue is full", errors.ErrCodeQueueFull)
			w := post("/webhooks/chat/payment-proof", `{"chat_id":"6281234","order_id":"ORD-20240610-AAAA","proof_reference":"proof-9"}`)
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})

		It("rejects an unreadable reply and reports when nothing is pending", func() {
			w := post("/webhooks/chat/confirmation", `{"chat_id":"6281234","text":"maybe"}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w = post("/webhooks/chat/confirmation", `{"chat_id":"6281234","text":"YES"}`)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})
})
