// Package money formats amounts held in the smallest rupiah unit.
package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// IDR renders 240000 as "Rp240.000".
func IDR(amount int64) string {
	if amount < 0 {
		return "-" + printer.Sprintf("Rp%d", -amount)
	}
	return printer.Sprintf("Rp%d", amount)
}
