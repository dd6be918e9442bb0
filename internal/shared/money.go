package shared

import "github.com/shopspring/decimal"

// Ledger precision: currency amounts carry 2 decimal places, unit costs 4.
// Rounding is half-up everywhere amounts are derived.
const (
	MoneyScale    = 2
	UnitCostScale = 4
)

// RoundMoney rounds a currency amount half-up to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// RoundUnitCost rounds a unit cost half-up to 4 decimal places.
func RoundUnitCost(d decimal.Decimal) decimal.Decimal {
	return d.Round(UnitCostScale)
}
