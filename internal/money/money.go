package money

import "github.com/shopspring/decimal"

// Pricing constants shared by checkout. Shipping is free at or above
// the threshold, otherwise a flat rate applies.
var (
	TaxRate           = decimal.NewFromFloat(0.08)
	FreeShippingLimit = decimal.NewFromInt(50)
	FlatShippingRate  = decimal.RequireFromString("5.99")
)

// Round normalizes a monetary amount to 2 fractional digits using
// banker's rounding. Applied at persistence time only.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Tax returns the tax due on a subtotal.
func Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(TaxRate)
}

// Shipping returns the shipping cost for a subtotal.
func Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(FreeShippingLimit) {
		return decimal.Zero
	}
	return FlatShippingRate
}
