package reminder_test

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/lock"
	"github.com/frahmantamala/order-assistant/internal/notification"
	"github.com/frahmantamala/order-assistant/internal/order"
	orderPostgres "github.com/frahmantamala/order-assistant/internal/order/postgres"
	"github.com/frahmantamala/order-assistant/internal/reminder"
	reminderPostgres "github.com/frahmantamala/order-assistant/internal/reminder/postgres"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

var _ = Describe("Scheduler", func() {
	var (
		ctx       context.Context
		jakarta   *time.Location
		clk       *clock.Manual
		orders    order.RepositoryAPI
		log       reminder.Log
		guard     *lock.MemoryGuard
		sender    *recordingSender
		directory notification.Directory
		registry  *prometheus.Registry
		scheduler *reminder.Scheduler
		day0      time.Time
	)

	build := func() {
		orderService := order.NewService(orders, guard, nil, nil, clk, order.Config{WaitingThresholdDays: 7, Location: jakarta}, quietLogger())
		scheduler = reminder.NewScheduler(orders, orderService, log, directory, sender, guard, clk,
			reminder.NewMetrics(registry), reminder.Config{Location: jakarta}, quietLogger())
	}

	BeforeEach(func() {
		ctx = context.Background()
		jakarta = time.FixedZone("WIB", 7*3600)
		day0 = time.Date(2024, 6, 10, 0, 0, 0, 0, jakarta)
		clk = clock.NewManual(day0.Add(7 * time.Hour))
		db := newTestDB()
		orders = orderPostgres.NewOrderRepository(db, jakarta)
		log = reminderPostgres.NewReminderLogRepository(db, jakarta)
		guard = lock.NewMemoryGuard(time.Minute, clk)
		sender = &recordingSender{}
		directory = notification.StaticDirectory{"admin-a", "admin-b"}
		registry = prometheus.NewRegistry()
		build()
	})

	It("runs the deposit-then-deadline scenario end to end", func() {
		eventDate := day0.AddDate(0, 0, 6)
		seedOrder(orders, "ORD-20240610-AAAA", order.StatusConfirmed, 240000, 120000, eventDate)

		o, err := orders.Get(ctx, "ORD-20240610-AAAA")
		Expect(err).NotTo(HaveOccurred())
		Expect(o.PaymentStatus).To(Equal(ledger.StatusDPPaid))
		Expect(o.RemainingBalance).To(Equal(int64(120000)))

		clk.Set(day0.AddDate(0, 0, 2).Add(7 * time.Hour))
		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Sent).To(Equal(1))
		Expect(sender.To("admin-a")).To(HaveLen(1))
		Expect(sender.To("admin-a")[0]).To(ContainSubstring("[H-4]"))

		clk.Set(day0.AddDate(0, 0, 3).Add(7 * time.Hour))
		summary, err = scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.AutoCancelled).To(Equal(1))
		Expect(summary.Sent).To(BeZero())

		cancelled, err := orders.Get(ctx, "ORD-20240610-AAAA")
		Expect(err).NotTo(HaveOccurred())
		Expect(cancelled.Status).To(Equal(order.StatusCancelled))
		Expect(cancelled.CancelReason).To(Equal(reminder.AutoCancelReason))
		Expect(sender.To("chat-ORD-20240610-AAAA")).To(HaveLen(1))

		todays, err := log.ListForDate(ctx, day0.AddDate(0, 0, 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(todays).To(BeEmpty())

		Expect(counterValue(registry, "orders_auto_cancelled_total")).To(Equal(1.0))
	})

	It("is idempotent when rerun for the same day", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 4))
		seedOrder(orders, "ORD-B", order.StatusConfirmed, 240000, 240000, day0.AddDate(0, 0, 1))

		first, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Sent).To(Equal(2))

		before, err := log.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		sentBefore := len(sender.sent)

		second, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Sent).To(BeZero())
		Expect(second.Suppressed).To(Equal(2))

		after, err := log.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(HaveLen(len(before)))
		Expect(sender.sent).To(HaveLen(sentBefore))
	})

	It("never reminds an order again once anything was sent", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 240000, day0.AddDate(0, 0, 4))
		Expect(log.AppendEntry(ctx, &reminder.Entry{
			OrderID: "ORD-A", Type: reminder.TypeH4, Date: day0.AddDate(0, 0, -5), Status: reminder.StatusSent, Attempts: 1,
		})).To(Succeed())

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Suppressed).To(Equal(1))
		Expect(summary.Skipped).To(BeZero())
		Expect(sender.sent).To(BeEmpty())
	})

	It("logs SKIPPED for a fully paid order at H-4", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 240000, day0.AddDate(0, 0, 4))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Skipped).To(Equal(1))

		entries, err := log.ListForDate(ctx, day0)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Status).To(Equal(reminder.StatusSkipped))

		again, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.AlreadyProcessed).To(Equal(1))
	})

	It("sends the H-3 procurement reminder for a fully paid order", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 240000, day0.AddDate(0, 0, 3))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Sent).To(Equal(1))
		Expect(summary.AutoCancelled).To(BeZero())
		Expect(sender.To("admin-b")[0]).To(ContainSubstring("Nasi Box x12"))
	})

	It("ignores closed orders and days without a reminder", func() {
		seedOrder(orders, "ORD-A", order.StatusCancelled, 240000, 0, day0.AddDate(0, 0, 4))
		seedOrder(orders, "ORD-B", order.StatusCompleted, 240000, 240000, day0.AddDate(0, 0, 1))
		seedOrder(orders, "ORD-C", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 2))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary).To(Equal(reminder.Summary{Date: "2024-06-10"}))
	})

	It("records SENT when at least one recipient was reached", func() {
		sender.failFor = map[string]error{"admin-a": stdErrors.New("blocked")}
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 4))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Sent).To(Equal(1))

		entries, err := log.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries[0].Notes).To(Equal("delivered to 1 of 2 recipients"))
	})

	It("records FAILED with the first error and retries on a later day", func() {
		sender.failFor = map[string]error{"admin-a": stdErrors.New("first failure"), "admin-b": stdErrors.New("second failure")}
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 240000, day0.AddDate(0, 0, 3))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Failed).To(Equal(1))

		entries, err := log.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Status).To(Equal(reminder.StatusFailed))
		Expect(entries[0].Notes).To(ContainSubstring("first failure"))
		Expect(entries[0].Attempts).To(Equal(1))

		again, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.AlreadyProcessed).To(Equal(1))
		Expect(sender.sent).To(BeEmpty())

		sender.failFor = nil
		clk.Set(day0.AddDate(0, 0, 2).Add(7 * time.Hour))
		later, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(later.Sent).To(Equal(1))
		Expect(later.Suppressed).To(BeZero())
		Expect(sender.To("admin-a")).To(HaveLen(1))
		Expect(sender.To("admin-a")[0]).To(ContainSubstring("[H-1]"))
	})

	It("reaches upcoming orders however many older orders the store holds", func() {
		for i := 0; i < 25; i++ {
			seedOrder(orders, fmt.Sprintf("ORD-OLD-%02d", i), order.StatusCompleted, 240000, 240000, day0.AddDate(0, 0, -30+i))
		}
		seedOrder(orders, "ORD-NEW", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 4))
		seedOrder(orders, "ORD-DUE", order.StatusConfirmed, 240000, 120000, day0.AddDate(0, 0, 3))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Sent).To(Equal(1))
		Expect(summary.AutoCancelled).To(Equal(1))
		Expect(sender.To("admin-a")[0]).To(ContainSubstring("ORD-NEW"))
	})

	It("records FAILED when nobody can receive reminders", func() {
		directory = notification.StaticDirectory{}
		build()
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 4))

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Failed).To(Equal(1))
	})

	It("defers an order another writer holds", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 0, day0.AddDate(0, 0, 4))
		_, ok, err := guard.Acquire(ctx, "ORD-A")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		summary, err := scheduler.RunDailyReminders(ctx, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Locked).To(Equal(1))
		Expect(sender.sent).To(BeEmpty())

		entries, err := log.ListAll(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("uses the date override instead of the clock", func() {
		seedOrder(orders, "ORD-A", order.StatusConfirmed, 240000, 0, time.Date(2024, 7, 5, 0, 0, 0, 0, jakarta))

		asOf := time.Date(2024, 7, 1, 0, 0, 0, 0, jakarta)
		summary, err := scheduler.RunDailyReminders(ctx, &asOf)
		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Date).To(Equal("2024-07-01"))
		Expect(summary.Sent).To(Equal(1))
	})
})

var _ = Describe("TypeForDaysDiff", func() {
	DescribeTable("maps days to reminders",
		func(days int, expected reminder.Type, ok bool) {
			t, found := reminder.TypeForDaysDiff(days)
			Expect(found).To(Equal(ok))
			Expect(t).To(Equal(expected))
		},
		Entry("H-4", 4, reminder.TypeH4, true),
		Entry("H-3", 3, reminder.TypeH3, true),
		Entry("H-1", 1, reminder.TypeH1, true),
		Entry("two days out", 2, reminder.Type(""), false),
		Entry("event day", 0, reminder.Type(""), false),
	)
})

var _ = Describe("NextRun", func() {
	jakarta := time.FixedZone("WIB", 7*3600)

	It("picks today when the time has not passed", func() {
		now := time.Date(2024, 6, 10, 6, 30, 0, 0, jakarta)
		Expect(reminder.NextRun(now, jakarta, 7, 0)).To(Equal(time.Date(2024, 6, 10, 7, 0, 0, 0, jakarta)))
	})

	It("rolls over to tomorrow once the time has passed", func() {
		now := time.Date(2024, 6, 10, 7, 0, 0, 0, jakarta)
		Expect(reminder.NextRun(now, jakarta, 7, 0)).To(Equal(time.Date(2024, 6, 11, 7, 0, 0, 0, jakarta)))
	})

	It("computes the local time from a UTC clock", func() {
		now := time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC)
		Expect(reminder.NextRun(now, jakarta, 7, 0)).To(Equal(time.Date(2024, 6, 11, 7, 0, 0, 0, jakarta)))
	})
})

func counterValue(reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	Fail("metric not registered: " + name)
	return 0
}
