package payment

import "github.com/shopspring/decimal"

// AmountScale is the number of decimal places an amount may carry.
const AmountScale = 2

// MaxAmount is the exclusive upper bound of an amount, matching the
// NUMERIC(12, 2) columns money is stored in.
var MaxAmount = decimal.New(1, 10)

// ValidAmount reports whether v is positive, has at most AmountScale decimal
// places and is below MaxAmount, so it is stored exactly as charged.
func ValidAmount(v decimal.Decimal) bool {
	return v.IsPositive() &&
		v.Equal(v.Truncate(AmountScale)) &&
		v.LessThan(MaxAmount)
}
