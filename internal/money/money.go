// Package money provides the fixed-point decimal helpers used everywhere
// cash, volume, and price arithmetic crosses a settlement boundary. All
// ledger-affecting math in this module goes through decimal.Decimal rather
// than float64 so that repeated buy/sell round trips never drift by a cent.
package money

import (
	"github.com/shopspring/decimal"
)

// Decimal is the money type threaded through the domain model.
type Decimal = decimal.Decimal

// Zero is the additive identity, handy for accumulator seeds.
var Zero = decimal.Zero

// FromInt builds a Decimal from a plain integer share count.
func FromInt(v int64) Decimal {
	return decimal.NewFromInt(v)
}

// FromFloat builds a Decimal from a float64. Reserved for boundary
// conversions (JSON numbers from the quote provider); never use this for
// values that originate from another Decimal.
func FromFloat(v float64) Decimal {
	return decimal.NewFromFloat(v)
}

// Parse parses a decimal string, returning an error on malformed input.
func Parse(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// Round rounds to 2 decimal places (RMB fen precision) using banker's
// rounding, matching how the durable store persists currency columns.
func Round(d Decimal) Decimal {
	return d.RoundBank(2)
}
