package ocr

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/frahmantamala/order-assistant/internal/payment"
)

var (
	numberToken = regexp.MustCompile(`\d[\d.,]*\d|\d`)
	grouped     = regexp.MustCompile(`^\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{2})?$`)
	plainDigits = regexp.MustCompile(`^\d+$`)
	// a trailing ",00" style decimal part on an otherwise plain number
	plainWithCents = regexp.MustCompile(`^(\d+)[.,]\d{2}$`)
	currencyMarker = regexp.MustCompile(`(?i)(?:rp\.?|idr)\s*$`)
)

var amountLabels = []string{"total", "nominal", "jumlah", "amount", "transfer", "bayar"}

// Bounds drops numbers that cannot be a payment: dates, phone fragments, balances.
type Bounds struct {
	Min int64
	Max int64
}

func (b Bounds) contains(amount int64) bool {
	if amount <= 0 {
		return false
	}
	if b.Min > 0 && amount < b.Min {
		return false
	}
	if b.Max > 0 && amount > b.Max {
		return false
	}
	return true
}

// ParseCandidates scans recognized receipt text for money amounts.
// Each distinct amount is reported once, with the strongest provenance it was seen with.
func ParseCandidates(text string, confidence float64, bounds Bounds) []payment.Candidate {
	best := map[int64]payment.Candidate{}
	var order []int64

	for _, line := range strings.Split(text, "\n") {
		labelled := hasAmountLabel(line)

		for _, loc := range numberToken.FindAllStringIndex(line, -1) {
			token := line[loc[0]:loc[1]]
			prefixed := currencyMarker.MatchString(line[:loc[0]])

			amount, ok := parseAmount(token, prefixed)
			if !ok || !bounds.contains(amount) {
				continue
			}

			prov := payment.ProvenanceBare
			switch {
			case prefixed:
				prov = payment.ProvenancePrefixed
			case labelled:
				prov = payment.ProvenanceLabelled
			}

			existing, seen := best[amount]
			if !seen {
				order = append(order, amount)
			}
			if !seen || prov.Weight() > existing.Provenance.Weight() {
				best[amount] = payment.Candidate{Amount: amount, Confidence: confidence, Provenance: prov}
			}
		}
	}

	candidates := make([]payment.Candidate, 0, len(order))
	for _, amount := range order {
		candidates = append(candidates, best[amount])
	}
	return candidates
}

func hasAmountLabel(line string) bool {
	lower := strings.ToLower(line)
	for _, label := range amountLabels {
		if strings.Contains(lower, label) {
			return true
		}
	}
	return false
}

// parseAmount accepts grouped numbers ("1.250.000", "395,000.00") anywhere and
// plain digit runs of 5 to 9 digits. Currency-prefixed plain numbers may be shorter.
// Runs of 10 or more ungrouped digits look like account numbers and are rejected.
func parseAmount(token string, prefixed bool) (int64, bool) {
	switch {
	case grouped.MatchString(token):
		return parseGrouped(token)
	case plainDigits.MatchString(token):
		if len(token) >= 10 {
			return 0, false
		}
		if len(token) < 5 && !prefixed {
			return 0, false
		}
		return parseInt(token)
	default:
		if m := plainWithCents.FindStringSubmatch(token); m != nil && len(m[1]) < 10 {
			return parseInt(m[1])
		}
		return 0, false
	}
}

func parseGrouped(token string) (int64, bool) {
	// a final two-digit group is a decimal part
	if n := len(token); n > 3 && (token[n-3] == '.' || token[n-3] == ',') {
		token = token[:n-3]
	}
	return parseInt(strings.NewReplacer(".", "", ",", "").Replace(token))
}

func parseInt(digits string) (int64, bool) {
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
