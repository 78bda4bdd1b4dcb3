package cart

import (
	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var (
	hundred        = decimal.NewFromInt(100)
	DefaultTaxRate = decimal.RequireFromString("0.16")
)

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

func clampPercentage(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(hundred) {
		return hundred
	}
	return p
}

// unitDiscountFor derives a line's per-unit discount from the product's
// discount percentage.
func unitDiscountFor(price, percentage decimal.Decimal) decimal.Decimal {
	return roundMoney(price.Mul(clampPercentage(percentage)).Div(hundred))
}

// lineTax is the tax component contained in a tax-inclusive line total.
func lineTax(unitPrice decimal.Decimal, quantity int, rate decimal.Decimal) decimal.Decimal {
	gross := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	return gross.Mul(rate).Div(decimal.NewFromInt(1).Add(rate))
}

// recompute refreshes every derived field of the snapshot in one pass over
// its items. Components are rounded as they are produced and the dependent
// fields are derived from the rounded values, so
// GrandTotal == PreTaxAmount + TaxAmount and
// PreTaxAmount == TaxExclusiveSubtotal - TotalDiscount hold exactly.
func recompute(s *Snapshot) {
	rate := s.TaxRate

	var (
		count       int
		gross       = decimal.Zero
		tax         = decimal.Zero
		productDisc = decimal.Zero
	)
	for _, item := range s.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		count += item.Quantity
		gross = gross.Add(item.UnitPrice.Mul(qty))
		tax = tax.Add(lineTax(item.UnitPrice, item.Quantity, rate))
		productDisc = productDisc.Add(item.UnitDiscount.Mul(qty))
	}

	s.ItemCount = count
	s.TaxInclusiveSubtotal = roundMoney(gross)
	s.TaxAmount = roundMoney(tax)
	s.TaxExclusiveSubtotal = s.TaxInclusiveSubtotal.Sub(s.TaxAmount)
	s.ProductDiscountTotal = roundMoney(productDisc)

	s.CartDiscountTotal = decimal.Zero
	if s.Discount != nil {
		s.CartDiscountTotal = roundMoney(s.TaxExclusiveSubtotal.Mul(s.Discount.Percentage).Div(hundred))
	}

	s.TotalDiscount = s.ProductDiscountTotal.Add(s.CartDiscountTotal)
	s.PreTaxAmount = s.TaxExclusiveSubtotal.Sub(s.TotalDiscount)
	s.GrandTotal = s.PreTaxAmount.Add(s.TaxAmount)
}

func emptySnapshot(rate decimal.Decimal) *Snapshot {
	s := &Snapshot{Items: []LineItem{}, TaxRate: rate}
	recompute(s)
	return s
}
