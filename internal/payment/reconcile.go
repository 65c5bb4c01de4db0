package payment

import (
	"sort"
)

// Provenance says how an extracted amount was found in the proof text.
type Provenance string

const (
	// ProvenancePrefixed amounts follow a currency marker such as "Rp" or "IDR".
	ProvenancePrefixed Provenance = "prefixed"
	// ProvenanceLabelled amounts sit on a line labelled total, nominal, jumlah and the like.
	ProvenanceLabelled Provenance = "labelled"
	ProvenanceBare     Provenance = "bare"
)

func (p Provenance) Weight() int {
	switch p {
	case ProvenancePrefixed:
		return 3
	case ProvenanceLabelled:
		return 2
	case ProvenanceBare:
		return 1
	default:
		return 0
	}
}

type Candidate struct {
	Amount     int64      `json:"amount"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

type Tolerance struct {
	Relative float64
	Absolute int64
}

var DefaultTolerance = Tolerance{Relative: 0.10, Absolute: 10000}

// IsSuspicious needs both limits exceeded, so small orders are not flagged for a few thousand rupiah.
func (t Tolerance) IsSuspicious(candidate, expected int64) bool {
	diff := candidate - expected
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) > t.Relative*float64(expected) && diff > t.Absolute
}

// SelectCandidate ranks by provenance weight, then the smaller amount, then confidence.
// Receipts usually print the transfer amount before any larger running balance.
func SelectCandidate(candidates []Candidate) (Candidate, bool) {
	plausible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Amount > 0 {
			plausible = append(plausible, c)
		}
	}
	if len(plausible) == 0 {
		return Candidate{}, false
	}

	sort.SliceStable(plausible, func(i, j int) bool {
		a, b := plausible[i], plausible[j]
		if a.Provenance.Weight() != b.Provenance.Weight() {
			return a.Provenance.Weight() > b.Provenance.Weight()
		}
		if a.Amount != b.Amount {
			return a.Amount < b.Amount
		}
		return a.Confidence > b.Confidence
	})
	return plausible[0], true
}

type Decision struct {
	Expected   int64
	Candidate  *Candidate
	Suspicious bool
	// Amount is what gets committed when the decision is not suspicious.
	Amount int64
}

type Reconciler struct {
	Tolerance Tolerance
}

func NewReconciler(t Tolerance) Reconciler {
	return Reconciler{Tolerance: t}
}

func (r Reconciler) Reconcile(expected int64, candidates []Candidate) Decision {
	top, ok := SelectCandidate(candidates)
	if !ok {
		return Decision{Expected: expected, Amount: expected}
	}

	return Decision{
		Expected:   expected,
		Candidate:  &top,
		Suspicious: r.Tolerance.IsSuspicious(top.Amount, expected),
		Amount:     top.Amount,
	}
}
