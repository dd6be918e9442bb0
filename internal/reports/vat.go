package reports

import (
	"github.com/shopspring/decimal"
)

// VatSummary is the monthly VAT position. Output tax is collected on sales,
// input tax is paid on purchases; the net is what is owed to the authority.
type VatSummary struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	OutputTax  decimal.Decimal `json:"output_tax"`
	InputTax   decimal.Decimal `json:"input_tax"`
	NetPayable decimal.Decimal `json:"net_payable"`
}

// BuildVatSummary derives the monthly position from the tax account's
// aggregated movements. Credits accrue output tax, debits reclaim input tax.
func BuildVatSummary(year, month int, taxDebit, taxCredit decimal.Decimal) VatSummary {
	return VatSummary{
		Year:       year,
		Month:      month,
		OutputTax:  taxCredit,
		InputTax:   taxDebit,
		NetPayable: taxCredit.Sub(taxDebit),
	}
}
