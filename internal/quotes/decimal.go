package quotes

import "github.com/hyu9999/paper-trading-1/internal/money"

// parseDecimal parses s as a money.Decimal, treating an empty string as
// zero (the upper/lower price-limit condition: the provider reports no
// price at a book level with no orders).
func parseDecimal(s string) (money.Decimal, error) {
	if s == "" {
		return money.Zero, nil
	}
	return money.Parse(s)
}
