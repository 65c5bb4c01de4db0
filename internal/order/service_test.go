package order_test

import (
	"context"
	stdErrors "errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/order-assistant/internal"
	"github.com/frahmantamala/order-assistant/internal/core/events"
	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/internal/order"
	orderPostgres "github.com/frahmantamala/order-assistant/internal/order/postgres"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

type fixedPricer struct {
	unitPrice int64
	err       error
}

func (p fixedPricer) PriceItems(_ context.Context, items []order.Item) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	var total int64
	for _, it := range items {
		total += p.unitPrice * int64(it.Quantity)
	}
	return total, nil
}

var _ = Describe("Order Service", func() {
	var (
		ctx       context.Context
		jakarta   *time.Location
		clk       *clock.Manual
		repo      order.RepositoryAPI
		guard     *lock.MemoryGuard
		publisher *recordingPublisher
		service   *order.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		jakarta = time.FixedZone("WIB", 7*3600)
		clk = clock.NewManual(time.Date(2024, 6, 10, 9, 0, 0, 0, jakarta))
		repo = orderPostgres.NewOrderRepository(newTestDB(), jakarta)
		guard = lock.NewMemoryGuard(time.Minute, clk)
		publisher = &recordingPublisher{}
		service = order.NewService(repo, guard, publisher, fixedPricer{unitPrice: 20000}, clk, order.Config{
			WaitingThresholdDays: 7,
			ListLimit:            100,
			Location:             jakarta,
		}, quietLogger())
	})

	createOrder := func(eventDate string) *order.Order {
		o, err := service.CreateOrder(ctx, order.CreateOrderDTO{
			CustomerName:   "Sari",
			CustomerChatID: "chat-42",
			EventDate:      eventDate,
			Items:          []order.ItemDTO{{Name: "Nasi Box", Quantity: 10}},
			DeliveryFee:    40000,
		})
		Expect(err).NotTo(HaveOccurred())
		return o
	}

	Describe("CreateOrder", func() {
		It("prices the items and starts unpaid", func() {
			o := createOrder("2024-06-16")

			Expect(o.ID).To(MatchRegexp(`^ORD-20240610-[A-Z0-9]{4}$`))
			Expect(o.Status).To(Equal(order.StatusPendingConfirmation))
			Expect(o.ProductTotal).To(Equal(int64(200000)))
			Expect(o.TotalAmount).To(Equal(int64(240000)))
			Expect(o.PaymentStatus).To(Equal(ledger.StatusUnpaid))
			Expect(o.RemainingBalance).To(Equal(int64(240000)))

			stored, err := service.GetOrder(ctx, o.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.EventDate).To(Equal(time.Date(2024, 6, 16, 0, 0, 0, 0, jakarta)))
			Expect(stored.Items).To(HaveLen(1))
		})

		It("defers far-away events into waiting", func() {
			o := createOrder("2024-06-30")
			Expect(o.Status).To(Equal(order.StatusWaiting))
		})

		It("rejects a past event date", func() {
			_, err := service.CreateOrder(ctx, order.CreateOrderDTO{
				CustomerName: "Sari",
				EventDate:    "2024-06-09",
				Items:        []order.ItemDTO{{Name: "Nasi Box", Quantity: 1}},
			})
			Expect(errors.IsType(err, errors.ErrorTypeValidation)).To(BeTrue())
		})

		It("rejects items with zero quantity", func() {
			_, err := service.CreateOrder(ctx, order.CreateOrderDTO{
				CustomerName: "Sari",
				EventDate:    "2024-06-20",
				Items:        []order.ItemDTO{{Name: "Nasi Box", Quantity: 0}},
			})
			Expect(errors.IsType(err, errors.ErrorTypeValidation)).To(BeTrue())
		})

		It("uses an explicit product total over menu pricing", func() {
			o, err := service.CreateOrder(ctx, order.CreateOrderDTO{
				CustomerName: "Sari",
				EventDate:    "2024-06-20",
				Items:        []order.ItemDTO{{Name: "Custom Cake", Quantity: 1}},
				ProductTotal: 350000,
				PackagingFee: 5000,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(o.TotalAmount).To(Equal(int64(355000)))
		})

		It("surfaces pricing failures", func() {
			priceErr := errors.NewValidationError("unknown menu item", errors.ErrCodeUnknownMenuItem)
			service = order.NewService(repo, guard, publisher, fixedPricer{err: priceErr}, clk, order.Config{Location: jakarta}, quietLogger())

			_, err := service.CreateOrder(ctx, order.CreateOrderDTO{
				CustomerName: "Sari",
				EventDate:    "2024-06-20",
				Items:        []order.ItemDTO{{Name: "Mystery", Quantity: 1}},
			})
			Expect(err).To(MatchError(priceErr))
		})
	})

	Describe("transitions", func() {
		It("confirms and reports the payment window", func() {
			o := createOrder("2024-06-16")

			confirmed, window, err := service.ConfirmOrder(ctx, o.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(confirmed.Status).To(Equal(order.StatusConfirmed))
			Expect(confirmed.ConfirmedAt).NotTo(BeNil())
			Expect(window.DepositAllowed).To(BeTrue())
			Expect(window.FullPaymentDue).To(Equal(time.Date(2024, 6, 13, 0, 0, 0, 0, jakarta)))
			Expect(publisher.Types()).To(ConsistOf(events.EventTypeOrderConfirmed))

			stored, _ := service.GetOrder(ctx, o.ID)
			Expect(stored.Status).To(Equal(order.StatusConfirmed))
		})

		It("requires full payment for a near event", func() {
			o := createOrder("2024-06-13")
			_, window, err := service.ConfirmOrder(ctx, o.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(window.DepositAllowed).To(BeFalse())
		})

		It("cancels with a reason and refuses a second cancellation", func() {
			o := createOrder("2024-06-16")

			cancelled, err := service.CancelOrder(ctx, o.ID, "customer changed plans")
			Expect(err).NotTo(HaveOccurred())
			Expect(cancelled.CancelReason).To(Equal("customer changed plans"))

			_, err = service.CancelOrder(ctx, o.ID, "again")
			Expect(err).To(MatchError(order.ErrInvalidTransition))

			stored, _ := service.GetOrder(ctx, o.ID)
			Expect(stored.CancelReason).To(Equal("customer changed plans"))
		})

		It("completes an unconfirmed order with a warning flag", func() {
			o := createOrder("2024-06-16")

			completed, irregular, err := service.CompleteOrder(ctx, o.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(irregular).To(BeTrue())
			Expect(completed.Status).To(Equal(order.StatusCompleted))
		})

		It("marks automatic cancellations on the event", func() {
			o := createOrder("2024-06-16")
			_, err := service.AutoCancel(ctx, o.ID, "unpaid")
			Expect(err).NotTo(HaveOccurred())

			evt := publisher.events[0].(*events.OrderStatusChangedEvent)
			Expect(evt.Automatic).To(BeTrue())
			Expect(evt.CustomerChatID).To(Equal("chat-42"))
		})

		It("returns lock contention while another path holds the order", func() {
			o := createOrder("2024-06-16")
			_, ok, _ := guard.Acquire(ctx, o.ID)
			Expect(ok).To(BeTrue())

			_, _, err := service.ConfirmOrder(ctx, o.ID)
			Expect(stdErrors.Is(err, errors.ErrOrderLocked)).To(BeTrue())

			stored, _ := service.GetOrder(ctx, o.ID)
			Expect(stored.Status).To(Equal(order.StatusPendingConfirmation))
		})

		It("reports unknown orders as not found", func() {
			_, _, err := service.ConfirmOrder(ctx, "ORD-00000000-NONE")
			Expect(stdErrors.Is(err, errors.ErrOrderNotFound)).To(BeTrue())
		})
	})
})
