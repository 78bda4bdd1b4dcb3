package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/types"
)

// Product is the backend's product record, trimmed to what the till needs.
type Product struct {
	ID                 types.ExternalID `json:"id"`
	Name               string           `json:"name"`
	SKU                string           `json:"sku"`
	Barcode            string           `json:"barcode"`
	Price              types.Money      `json:"price"`
	QuantityInStock    int              `json:"quantityInStock"`
	DiscountPercentage types.Money      `json:"discountPercentage"`
}

// Discount is a cart-level discount code.
type Discount struct {
	Code        string          `json:"code"`
	Percentage  types.Money     `json:"percentage"`
	Description string          `json:"description,omitempty"`
	ValidFrom   types.LocalTime `json:"validFrom"`
	ValidTo     types.LocalTime `json:"validTo"`
}

// GetProduct fetches a single product by id.
func (c *Client) GetProduct(ctx context.Context, id string) (*Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var out Product
	if err := c.do(ctx, http.MethodGet, "products/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		out.ID = types.ExternalID(id)
	}
	return &out, nil
}

// LookupDiscount resolves a discount code.
func (c *Client) LookupDiscount(ctx context.Context, code string) (*Discount, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount code is required")
	}
	var out Discount
	if err := c.do(ctx, http.MethodGet, "discounts/code/"+url.PathEscape(code), nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Code == "" {
		out.Code = code
	}
	return &out, nil
}
