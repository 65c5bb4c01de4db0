package order_test

import (
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
	"github.com/frahmantamala/order-assistant/internal/order"
	orderPostgres "github.com/frahmantamala/order-assistant/internal/order/postgres"
	"github.com/frahmantamala/order-assistant/internal/transport"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

var _ = Describe("Order Handler", func() {
	var router *chi.Mux

	BeforeEach(func() {
		jakarta := time.FixedZone("WIB", 7*3600)
		clk := clock.NewManual(time.Date(2024, 6, 10, 9, 0, 0, 0, jakarta))
		service := order.NewService(
			orderPostgres.NewOrderRepository(newTestDB(), jakarta),
			lock.NewMemoryGuard(time.Minute, clk),
			nil,
			fixedPricer{unitPrice: 20000},
			clk,
			order.Config{WaitingThresholdDays: 7, Location: jakarta},
			quietLogger(),
		)
		handler := order.NewHandler(transport.NewBaseHandler(quietLogger()), service)

		router = chi.NewRouter()
		router.Post("/orders", handler.CreateOrder)
		router.Get("/orders", handler.ListOrders)
		router.Get("/orders/{id}", handler.GetOrder)
		router.Patch("/orders/{id}/confirm", handler.ConfirmOrder)
		router.Patch("/orders/{id}/cancel", handler.CancelOrder)
		router.Patch("/orders/{id}/complete", handler.CompleteOrder)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	createOrder := func() order.OrderResponse {
		w := do(http.MethodPost, "/orders", `{"customer_name":"Sari","event_date":"2024-06-16","items":[{"name":"Nasi Box","quantity":12}]}`)
		Expect(w.Code).To(Equal(http.StatusCreated))

		var resp order.OrderResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		return resp
	}

	It("creates an order and returns the ledger view", func() {
		resp := createOrder()
		Expect(resp.EventDate).To(Equal("2024-06-16"))
		Expect(resp.TotalAmount).To(Equal(int64(240000)))
		Expect(resp.MinimumDeposit).To(Equal(int64(120000)))
	})

	It("answers 400 with field details for invalid input", func() {
		w := do(http.MethodPost, "/orders", `{"customer_name":"","event_date":"16/06/2024","items":[]}`)
		Expect(w.Code).To(Equal(http.StatusBadRequest))

		var resp struct {
			Error struct {
				Type    string `json:"type"`
				Details errors.ValidationErrors
			} `json:"error"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Error.Type).To(Equal(string(errors.ErrorTypeValidation)))
		Expect(resp.Error.Details.Errors).NotTo(BeEmpty())
	})

	It("confirms then refuses to confirm again with 409", func() {
		created := createOrder()

		w := do(http.MethodPatch, "/orders/"+created.ID+"/confirm", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var confirmed order.ConfirmOrderResponse
		Expect(json.NewDecoder(w.Body).Decode(&confirmed)).To(Succeed())
		Expect(confirmed.Order.Status).To(Equal(order.StatusConfirmed))
		Expect(confirmed.PaymentWindow.DepositAllowed).To(BeTrue())

		w = do(http.MethodPatch, "/orders/"+created.ID+"/confirm", "")
		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring(string(errors.ErrCodeInvalidTransition)))
	})

	It("cancels with an optional body", func() {
		created := createOrder()

		w := do(http.MethodPatch, "/orders/"+created.ID+"/cancel", `{"reason":"double booking"}`)
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("double booking"))
	})

	It("flags completion of an unconfirmed order", func() {
		created := createOrder()

		w := do(http.MethodPatch, "/orders/"+created.ID+"/complete", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp order.TransitionResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Warning).NotTo(BeEmpty())
	})

	It("returns 404 for unknown orders", func() {
		w := do(http.MethodGet, "/orders/ORD-00000000-NONE", "")
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("filters the list by status", func() {
		createOrder()
		second := createOrder()
		do(http.MethodPatch, "/orders/"+second.ID+"/confirm", "")

		w := do(http.MethodGet, "/orders?status=confirmed", "")
		Expect(w.Code).To(Equal(http.StatusOK))

		var resp order.OrdersResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Count).To(Equal(1))
		Expect(resp.Orders[0].ID).To(Equal(second.ID))
	})
})
