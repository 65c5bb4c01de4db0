package payment_test

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
	"github.com/frahmantamala/order-assistant/internal/payment"
	paymentPostgres "github.com/frahmantamala/order-assistant/internal/payment/postgres"
	"github.com/frahmantamala/order-assistant/pkg/clock"
)

var _ = Describe("Payment Service", func() {
	var (
		ctx       context.Context
		jakarta   *time.Location
		clk       *clock.Manual
		orders    order.RepositoryAPI
		records   payment.RecordStore
		pending   *payment.MemoryPendingStore
		extractor *stubExtractor
		guard     *lock.MemoryGuard
		publisher *recordingPublisher
		service   *payment.Service
		eventDate time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		jakarta = time.FixedZone("WIB", 7*3600)
		clk = clock.NewManual(time.Date(2024, 6, 10, 9, 0, 0, 0, jakarta))
		db := newTestDB()
		orders = orderPostgres.NewOrderRepository(db, jakarta)
		records = paymentPostgres.NewPaymentRepository(db)
		pending = payment.NewMemoryPendingStore(clk)
		extractor = &stubExtractor{}
		guard = lock.NewMemoryGuard(time.Minute, clk)
		publisher = &recordingPublisher{}
		service = payment.NewService(orders, records, pending, extractor, guard, publisher, clk, payment.Config{
			Tolerance:  payment.DefaultTolerance,
			PendingTTL: time.Hour,
		}, quietLogger())
		eventDate = time.Date(2024, 6, 20, 0, 0, 0, 0, jakarta)
	})

	Describe("RecordPayment", func() {
		It("takes a deposit and then settles the order", func() {
			seedOrder(orders, "ORD-20240610-AAAA", 240000, eventDate)

			first, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-AAAA", ActorID: "admin-1", ClaimedAmount: 120000,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Status).To(Equal(payment.ResultAccepted))
			Expect(first.Ledger.PaymentStatus).To(Equal(ledger.StatusDPPaid))
			Expect(first.Ledger.RemainingBalance).To(Equal(int64(120000)))
			Expect(first.Payment.Method).To(Equal(payment.MethodTransfer))

			second, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-AAAA", ActorID: "admin-1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Payment.AmountConfirmed).To(Equal(int64(120000)))
			Expect(second.Ledger.PaymentStatus).To(Equal(ledger.StatusFullPaid))

			stored, err := orders.Get(ctx, "ORD-20240610-AAAA")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PaidAmount).To(Equal(int64(240000)))
			Expect(stored.RemainingBalance).To(BeZero())
			Expect(publisher.Types()).To(Equal([]string{events.EventTypePaymentRecorded, events.EventTypePaymentRecorded}))
		})

		It("uses the extracted amount when it matches the claim", func() {
			seedOrder(orders, "ORD-20240610-BBBB", 395000, eventDate)
			extractor.candidates = []payment.Candidate{
				{Amount: 450000, Confidence: 0.9, Provenance: payment.ProvenanceBare},
				{Amount: 395000, Confidence: 0.8, Provenance: payment.ProvenancePrefixed},
			}

			result, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-BBBB", ActorID: "6281234", ClaimedAmount: 395000, ProofReference: "proof-1",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(payment.ResultAccepted))
			Expect(result.Payment.AmountConfirmed).To(Equal(int64(395000)))
			Expect(*result.Payment.ProofReference).To(Equal("proof-1"))
			Expect(extractor.calls).To(Equal(1))
		})

		It("reconciles a deposit claim against the claim, not the remaining balance", func() {
			seedOrder(orders, "ORD-20240610-CLAM", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 500000, Confidence: 0.9, Provenance: payment.ProvenancePrefixed}}

			result, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-CLAM", ActorID: "6281234", ClaimedAmount: 500000, ProofReference: "proof-claim",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(payment.ResultAccepted))
			Expect(result.ExpectedAmount).To(Equal(int64(500000)))
			Expect(result.Ledger.RemainingBalance).To(Equal(int64(500000)))
		})

		It("parks a suspicious amount and commits the expected amount on NO", func() {
			seedOrder(orders, "ORD-20240610-CCCC", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 100000, Confidence: 0.9, Provenance: payment.ProvenancePrefixed}}

			result, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-CCCC", ActorID: "6281234", ProofReference: "proof-2",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(payment.ResultPendingConfirmation))
			Expect(result.ExpectedAmount).To(Equal(int64(1000000)))
			Expect(result.CandidateAmount).To(Equal(int64(100000)))
			Expect(publisher.Types()).To(ContainElement(events.EventTypePaymentNeedsReview))

			stored, err := orders.Get(ctx, "ORD-20240610-CCCC")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PaidAmount).To(BeZero())

			resolved, err := service.ResolvePendingConfirmation(ctx, "6281234", "", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Payment.AmountConfirmed).To(Equal(int64(1000000)))
			Expect(resolved.Ledger.PaymentStatus).To(Equal(ledger.StatusFullPaid))

			_, err = pending.Get(ctx, "6281234", "ORD-20240610-CCCC")
			Expect(stdErrors.Is(err, errors.ErrPendingNotFound)).To(BeTrue())
		})

		It("commits the extracted amount on YES", func() {
			seedOrder(orders, "ORD-20240610-DDDD", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 100000, Confidence: 0.9, Provenance: payment.ProvenancePrefixed}}

			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-DDDD", ActorID: "6281234", ProofReference: "proof-3",
			})
			Expect(err).NotTo(HaveOccurred())

			resolved, err := service.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-DDDD", true)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.Payment.AmountConfirmed).To(Equal(int64(100000)))
			Expect(resolved.Ledger.PaymentStatus).To(Equal(ledger.StatusDPPaid))

			all, err := service.ListPayments(ctx, "ORD-20240610-DDDD")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Status).To(Equal(payment.RecordPendingReview))
			Expect(all[1].Status).To(Equal(payment.RecordConfirmed))
			Expect(payment.ConfirmedTotal(all)).To(Equal(int64(100000)))
		})

		It("credits a duplicated reply only once", func() {
			seedOrder(orders, "ORD-20240610-DUPL", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 100000, Confidence: 0.9, Provenance: payment.ProvenancePrefixed}}

			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-DUPL", ActorID: "6281234", ProofReference: "proof-dup",
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-DUPL", true)
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-DUPL", true)
			Expect(stdErrors.Is(err, errors.ErrPendingNotFound)).To(BeTrue())

			stored, err := orders.Get(ctx, "ORD-20240610-DUPL")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PaidAmount).To(Equal(int64(100000)))
		})

		It("rejects a reply that read the entry before an earlier reply consumed it", func() {
			seedOrder(orders, "ORD-20240610-RACE", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 100000, Confidence: 0.9, Provenance: payment.ProvenancePrefixed}}

			racing := &interleavingStore{PendingStore: pending}
			racingService := payment.NewService(orders, records, racing, extractor, guard, publisher, clk, payment.Config{
				Tolerance:  payment.DefaultTolerance,
				PendingTTL: time.Hour,
			}, quietLogger())

			_, err := racingService.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-RACE", ActorID: "6281234", ProofReference: "proof-race",
			})
			Expect(err).NotTo(HaveOccurred())

			var earlierErr error
			racing.between = func() {
				_, earlierErr = racingService.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-RACE", true)
			}

			_, err = racingService.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-RACE", true)
			Expect(earlierErr).NotTo(HaveOccurred())
			Expect(stdErrors.Is(err, errors.ErrPendingNotFound)).To(BeTrue())

			stored, err := orders.Get(ctx, "ORD-20240610-RACE")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.PaidAmount).To(Equal(int64(100000)))

			all, err := records.ListByOrder(ctx, "ORD-20240610-RACE")
			Expect(err).NotTo(HaveOccurred())
			confirmed := 0
			for _, r := range all {
				if r.Status == payment.RecordConfirmed {
					confirmed++
				}
			}
			Expect(confirmed).To(Equal(1))
		})

		It("forgets a pending confirmation once it expires", func() {
			seedOrder(orders, "ORD-20240610-EEEE", 1000000, eventDate)
			extractor.candidates = []payment.Candidate{{Amount: 100000, Provenance: payment.ProvenancePrefixed}}

			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-EEEE", ActorID: "6281234", ProofReference: "proof-4",
			})
			Expect(err).NotTo(HaveOccurred())

			clk.Advance(time.Hour)
			_, err = service.ResolvePendingConfirmation(ctx, "6281234", "ORD-20240610-EEEE", true)
			Expect(stdErrors.Is(err, errors.ErrPendingNotFound)).To(BeTrue())
		})

		It("rejects payments for a closed order and keeps an audit row", func() {
			o := seedOrder(orders, "ORD-20240610-FFFF", 240000, eventDate)
			Expect(orders.UpdateStatus(ctx, o.ID, order.StatusCancelled, clk.Now())).To(Succeed())

			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: o.ID, ActorID: "admin-1", ClaimedAmount: 120000,
			})
			Expect(errors.IsType(err, errors.ErrorTypeState)).To(BeTrue())
			appErr, _ := errors.IsAppError(err)
			Expect(appErr.Code).To(Equal(errors.ErrCodeOrderClosed))

			all, err := records.ListByOrder(ctx, o.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].Status).To(Equal(payment.RecordRejected))
			Expect(all[0].AmountConfirmed).To(BeZero())
		})

		It("refuses a payment when nothing is owed", func() {
			seedOrder(orders, "ORD-20240610-GGGG", 240000, eventDate)
			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-GGGG", ActorID: "admin-1", ClaimedAmount: 240000,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = service.RecordPayment(ctx, payment.RecordPaymentInput{OrderID: "ORD-20240610-GGGG", ActorID: "admin-1"})
			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeNothingDue))
		})

		It("does not touch the order when extraction fails", func() {
			seedOrder(orders, "ORD-20240610-HHHH", 240000, eventDate)
			extractor.err = stdErrors.New("ocr down")

			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-HHHH", ActorID: "6281234", ProofReference: "proof-5",
			})
			Expect(errors.IsType(err, errors.ErrorTypeExternal)).To(BeTrue())

			all, err := records.ListByOrder(ctx, "ORD-20240610-HHHH")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("returns the lock error while another writer holds the order", func() {
			seedOrder(orders, "ORD-20240610-IIII", 240000, eventDate)
			_, ok, err := guard.Acquire(ctx, "ORD-20240610-IIII")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			_, err = service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "ORD-20240610-IIII", ActorID: "admin-1", ClaimedAmount: 1000,
			})
			Expect(stdErrors.Is(err, errors.ErrOrderLocked)).To(BeTrue())
		})

		It("validates the input before loading the order", func() {
			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{
				OrderID: "", ActorID: "admin-1", ClaimedAmount: -5, Method: "cheque",
			})
			Expect(errors.IsType(err, errors.ErrorTypeValidation)).To(BeTrue())
		})

		It("reports a missing order", func() {
			_, err := service.RecordPayment(ctx, payment.RecordPaymentInput{OrderID: "ORD-NOPE", ActorID: "admin-1"})
			Expect(stdErrors.Is(err, errors.ErrOrderNotFound)).To(BeTrue())
		})
	})
})

// interleavingStore runs between once, right after the first successful Get returns.
type interleavingStore struct {
	payment.PendingStore
	between func()
	ran     bool
}

func (s *interleavingStore) Get(ctx context.Context, actorID, orderID string) (*payment.PendingConfirmation, error) {
	p, err := s.PendingStore.Get(ctx, actorID, orderID)
	if err == nil && s.between != nil && !s.ran {
		s.ran = true
		s.between()
	}
	return p, err
}
