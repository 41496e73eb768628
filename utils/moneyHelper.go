package utils

import (
	"github.com/shopspring/decimal"
)

var decimalOneHundred = decimal.NewFromInt(100)

// AggregateTolerance is the rounding tolerance used when comparing stored
// monetary aggregates against recomputed ones.
var AggregateTolerance = decimal.New(1, -2) // 0.01

// Round2 rounds a monetary value to 2 decimal places, half up.
// All currency math goes through shopspring/decimal; binary floats are never
// compared for equality.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// CalculateTaxFromRate derives tax and total from a subtotal and a tax rate
// percentage (IGV): tax = round2(subtotal * rate / 100), total = round2(subtotal + tax).
func CalculateTaxFromRate(subtotal decimal.Decimal, ratePercent decimal.Decimal) (tax decimal.Decimal, total decimal.Decimal) {
	tax = Round2(subtotal.Mul(ratePercent).Div(decimalOneHundred))
	total = Round2(subtotal.Add(tax))
	return tax, total
}

// CalculateTotalFromTax derives the grand total from a subtotal and an
// already-known tax amount: total = round2(subtotal + tax).
//
// Every code path that mutates a document's monetary fields must route
// through CalculateTaxFromRate or CalculateTotalFromTax; total_amount is
// never set independently of amount/tax_amount.
func CalculateTotalFromTax(subtotal decimal.Decimal, tax decimal.Decimal) decimal.Decimal {
	return Round2(subtotal.Add(tax))
}

// WithinTolerance reports whether two monetary values agree within the
// rounding tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(AggregateTolerance)
}
