package reminder

import (
	"fmt"
	"strings"

	"github.com/frahmantamala/order-assistant/internal/ledger"
	"github.com/frahmantamala/order-assistant/internal/order"
	"github.com/frahmantamala/order-assistant/pkg/clock"
	"github.com/frahmantamala/order-assistant/pkg/money"
)

// Render builds the staff message for a reminder.
func Render(t Type, o *order.Order) string {
	var b strings.Builder
	eventDate := clock.FormatDate(o.EventDate)

	switch t {
	case TypeH4:
		fmt.Fprintf(&b, "[H-4] Pengingat pembayaran %s\n", o.ID)
		fmt.Fprintf(&b, "Pelanggan: %s\nAcara: %s\n", o.CustomerName, eventDate)
		fmt.Fprintf(&b, "Status: %s, dibayar %s dari %s, sisa %s.\n",
			o.PaymentStatus, money.IDR(o.PaidAmount), money.IDR(o.TotalAmount), money.IDR(o.RemainingBalance))
		fmt.Fprintf(&b, "Pelunasan paling lambat %s, pesanan yang belum lunas dibatalkan otomatis.",
			clock.FormatDate(o.EventDate.AddDate(0, 0, -ledger.FullPaymentDueDaysBefore)))
	case TypeH3:
		fmt.Fprintf(&b, "[H-3] Belanja bahan untuk %s\n", o.ID)
		fmt.Fprintf(&b, "Pelanggan: %s\nAcara: %s\n", o.CustomerName, eventDate)
		writeItems(&b, o.Items)
	case TypeH1:
		fmt.Fprintf(&b, "[H-1] Persiapan %s besok\n", o.ID)
		fmt.Fprintf(&b, "Pelanggan: %s\nAcara: %s\n", o.CustomerName, eventDate)
		writeItems(&b, o.Items)
		if o.DeliveryMethod != "" {
			fmt.Fprintf(&b, "Pengiriman: %s\n", o.DeliveryMethod)
		}
		if o.Notes != "" {
			fmt.Fprintf(&b, "Catatan: %s\n", o.Notes)
		}
		if o.RemainingBalance > 0 {
			fmt.Fprintf(&b, "Sisa tagihan: %s", money.IDR(o.RemainingBalance))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeItems(b *strings.Builder, items []order.Item) {
	for _, it := range items {
		fmt.Fprintf(b, "- %s x%d\n", it.Name, it.Quantity)
	}
}

// CancellationNotice is sent to the customer when an unpaid order is cancelled at H-3.
func CancellationNotice(o *order.Order) string {
	return fmt.Sprintf("Mohon maaf, pesanan %s untuk %s dibatalkan karena pelunasan %s belum kami terima hingga H-3. Silakan hubungi kami bila ingin memesan ulang.",
		o.ID, clock.FormatDate(o.EventDate), money.IDR(o.RemainingBalance))
}
