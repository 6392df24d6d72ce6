// Package pricing holds the pure price math for budget line items.
// All monetary values are decimal.Decimal; nothing here touches storage.
package pricing

import "github.com/shopspring/decimal"

// DefaultMarginPercent is applied whenever a caller does not choose a margin.
const DefaultMarginPercent = 40

var (
	hundred       = decimal.NewFromInt(100)
	fullMargin    = decimal.NewFromInt(100)
	defaultMargin = decimal.NewFromInt(DefaultMarginPercent)
)

// DefaultMargin returns the default margin as a decimal percentage.
func DefaultMargin() decimal.Decimal {
	return defaultMargin
}

// SuggestedPrice derives a sale price from cost and a margin percentage:
// cost * (1 + margin/100). No clamping: zero or negative cost flows
// through the formula unchanged.
func SuggestedPrice(costPrice, marginPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(marginPercent.Div(hundred))
	return costPrice.Mul(factor)
}

// SuggestedPriceDefault is SuggestedPrice with the default 40% margin.
func SuggestedPriceDefault(costPrice decimal.Decimal) decimal.Decimal {
	return SuggestedPrice(costPrice, defaultMargin)
}

// Margin computes the realized margin percentage of unit price over cost.
// Non-positive cost means there is no cost basis (pure labor lines) and is
// read as full margin: 100. The result is otherwise unbounded — selling
// below cost yields a negative margin.
func Margin(costPrice, unitPrice decimal.Decimal) decimal.Decimal {
	if costPrice.LessThanOrEqual(decimal.Zero) {
		return fullMargin
	}
	return unitPrice.Sub(costPrice).Div(costPrice).Mul(hundred)
}
