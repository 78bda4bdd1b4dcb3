package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is what the till knows about a sellable item when it is added.
type Product struct {
	ID                 string
	Name               string
	SKU                string
	Barcode            string
	Price              decimal.Decimal
	StockAvailable     int
	DiscountPercentage decimal.Decimal
}

// LineItem is one product in the cart. UnitPrice is tax-inclusive.
type LineItem struct {
	ProductID          string          `json:"productId"`
	Name               string          `json:"name"`
	SKU                string          `json:"sku,omitempty"`
	Barcode            string          `json:"barcode,omitempty"`
	UnitPrice          decimal.Decimal `json:"unitPrice"`
	Quantity           int             `json:"quantity"`
	UnitDiscount       decimal.Decimal `json:"unitDiscount"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	StockAvailable     int             `json:"stockAvailable"`
}

// AppliedDiscount is the single cart-level discount code.
type AppliedDiscount struct {
	Code       string          `json:"code"`
	Percentage decimal.Decimal `json:"percentage"`
}

// Snapshot is the full pricing state of one operator's cart. Every money
// field is derived from Items, Discount and TaxRate and rounded to cents.
type Snapshot struct {
	Items    []LineItem       `json:"items"`
	Discount *AppliedDiscount `json:"appliedDiscount,omitempty"`
	TaxRate  decimal.Decimal  `json:"taxRate"`

	ItemCount            int             `json:"itemCount"`
	TaxInclusiveSubtotal decimal.Decimal `json:"taxInclusiveSubtotal"`
	TaxAmount            decimal.Decimal `json:"taxAmount"`
	TaxExclusiveSubtotal decimal.Decimal `json:"taxExclusiveSubtotal"`
	ProductDiscountTotal decimal.Decimal `json:"productDiscountTotal"`
	CartDiscountTotal    decimal.Decimal `json:"cartDiscountTotal"`
	TotalDiscount        decimal.Decimal `json:"totalDiscount"`
	PreTaxAmount         decimal.Decimal `json:"preTaxAmount"`
	GrandTotal           decimal.Decimal `json:"grandTotal"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// IsEmpty reports whether the cart has no lines.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Items) == 0
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Items = append([]LineItem(nil), s.Items...)
	if s.Discount != nil {
		d := *s.Discount
		out.Discount = &d
	}
	return &out
}

func (s *Snapshot) indexOf(productID string) int {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}
