package types

import (
	"github.com/shopspring/decimal"
)

// Money is a decimal amount that travels as a bare JSON number with two
// decimal places.
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.StringFixed(2)), nil
}
