package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenInvoice is an unpaid payable slice used for aging.
type OpenInvoice struct {
	InvoiceID     uuid.UUID
	SupplierID    uuid.UUID
	InvoiceNumber string
	Outstanding   decimal.Decimal
	DueDate       time.Time
}

// AgingBucket summarises outstanding payables inside a lateness band.
type AgingBucket struct {
	Bucket string          `json:"bucket"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// APAging is the payables aging report as of a given date.
type APAging struct {
	AsOf    time.Time       `json:"as_of"`
	Buckets []AgingBucket   `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

var agingBands = []struct {
	label   string
	minDays int
	maxDays int
}{
	{"CURRENT", -1 << 31, 0},
	{"1-30", 1, 30},
	{"31-60", 31, 60},
	{"61-90", 61, 90},
	{"90+", 91, 1 << 31},
}

// BuildAPAging buckets open invoices by days past due. Invoices not yet due
// land in CURRENT; every band appears in the output even when empty.
func BuildAPAging(asOf time.Time, invoices []OpenInvoice) APAging {
	report := APAging{AsOf: asOf, Total: decimal.Zero}
	buckets := make([]AgingBucket, len(agingBands))
	for i, band := range agingBands {
		buckets[i] = AgingBucket{Bucket: band.label, Amount: decimal.Zero}
	}
	day := 24 * time.Hour
	for _, inv := range invoices {
		overdue := int(asOf.Truncate(day).Sub(inv.DueDate.Truncate(day)) / day)
		for i, band := range agingBands {
			if overdue >= band.minDays && overdue <= band.maxDays {
				buckets[i].Amount = buckets[i].Amount.Add(inv.Outstanding)
				buckets[i].Count++
				break
			}
		}
		report.Total = report.Total.Add(inv.Outstanding)
	}
	report.Buckets = buckets
	return report
}
