package payment_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/order-assistant/internal/payment"
)

var _ = Describe("Reconciler", func() {
	reconciler := payment.NewReconciler(payment.DefaultTolerance)

	It("prefers a currency-prefixed amount over a larger bare number", func() {
		d := reconciler.Reconcile(395000, []payment.Candidate{
			{Amount: 450000, Confidence: 0.9, Provenance: payment.ProvenanceBare},
			{Amount: 395000, Confidence: 0.8, Provenance: payment.ProvenancePrefixed},
		})
		Expect(d.Candidate).NotTo(BeNil())
		Expect(d.Candidate.Amount).To(Equal(int64(395000)))
		Expect(d.Suspicious).To(BeFalse())
		Expect(d.Amount).To(Equal(int64(395000)))
	})

	It("breaks provenance ties with the smaller amount, then confidence", func() {
		top, ok := payment.SelectCandidate([]payment.Candidate{
			{Amount: 500000, Confidence: 0.99, Provenance: payment.ProvenanceLabelled},
			{Amount: 120000, Confidence: 0.50, Provenance: payment.ProvenanceLabelled},
			{Amount: 120000, Confidence: 0.70, Provenance: payment.ProvenanceLabelled},
		})
		Expect(ok).To(BeTrue())
		Expect(top.Amount).To(Equal(int64(120000)))
		Expect(top.Confidence).To(Equal(0.70))
	})

	It("falls back to the expected amount when nothing usable was extracted", func() {
		d := reconciler.Reconcile(240000, []payment.Candidate{{Amount: 0, Provenance: payment.ProvenancePrefixed}})
		Expect(d.Candidate).To(BeNil())
		Expect(d.Suspicious).To(BeFalse())
		Expect(d.Amount).To(Equal(int64(240000)))
	})

	DescribeTable("IsSuspicious needs both limits exceeded",
		func(candidate, expected int64, suspicious bool) {
			Expect(payment.DefaultTolerance.IsSuspicious(candidate, expected)).To(Equal(suspicious))
		},
		Entry("tenfold mismatch", int64(100000), int64(1000000), true),
		Entry("within ten percent", int64(380000), int64(395000), false),
		Entry("over ten percent but under the absolute floor", int64(55000), int64(50000), false),
		Entry("over both on a small order", int64(75000), int64(50000), true),
		Entry("exact", int64(240000), int64(240000), false),
	)

	DescribeTable("ParseConfirmationReply",
		func(text string, accept, ok bool) {
			a, k := payment.ParseConfirmationReply(text)
			Expect(k).To(Equal(ok))
			Expect(a).To(Equal(accept))
		},
		Entry("yes", "YES", true, true),
		Entry("lowercase ya", " ya ", true, true),
		Entry("no with punctuation", "no.", false, true),
		Entry("tidak", "Tidak", false, true),
		Entry("anything else", "maybe", false, false),
	)
})
