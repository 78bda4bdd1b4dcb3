package controllers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/pkg/types"
)

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=0"`
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type applyDiscountRequest struct {
	Code string `json:"code" validate:"required,max=64,discount_code"`
}

type lineItemResponse struct {
	ProductID          string      `json:"productId"`
	Name               string      `json:"name"`
	SKU                string      `json:"sku,omitempty"`
	Barcode            string      `json:"barcode,omitempty"`
	UnitPrice          types.Money `json:"unitPrice"`
	Quantity           int         `json:"quantity"`
	UnitDiscount       types.Money `json:"unitDiscount"`
	DiscountPercentage types.Money `json:"discountPercentage"`
	LineTotal          types.Money `json:"lineTotal"`
	StockAvailable     int         `json:"stockAvailable"`
}

type appliedDiscountResponse struct {
	Code       string      `json:"code"`
	Percentage types.Money `json:"percentage"`
}

type cartResponse struct {
	Items                []lineItemResponse       `json:"items"`
	Discount             *appliedDiscountResponse `json:"appliedDiscount,omitempty"`
	TaxRate              json.Number              `json:"taxRate"`
	ItemCount            int                      `json:"itemCount"`
	TaxInclusiveSubtotal types.Money              `json:"taxInclusiveSubtotal"`
	TaxAmount            types.Money              `json:"taxAmount"`
	TaxExclusiveSubtotal types.Money              `json:"taxExclusiveSubtotal"`
	ProductDiscountTotal types.Money              `json:"productDiscountTotal"`
	CartDiscountTotal    types.Money              `json:"cartDiscountTotal"`
	TotalDiscount        types.Money              `json:"totalDiscount"`
	PreTaxAmount         types.Money              `json:"preTaxAmount"`
	GrandTotal           types.Money              `json:"grandTotal"`
	UpdatedAt            *time.Time               `json:"updatedAt,omitempty"`
}

func newCartResponse(snap *cart.Snapshot) *cartResponse {
	if snap == nil {
		return nil
	}
	items := make([]lineItemResponse, 0, len(snap.Items))
	for _, item := range snap.Items {
		discounted := item.UnitPrice.Sub(item.UnitDiscount)
		items = append(items, lineItemResponse{
			ProductID:          item.ProductID,
			Name:               item.Name,
			SKU:                item.SKU,
			Barcode:            item.Barcode,
			UnitPrice:          types.NewMoney(item.UnitPrice),
			Quantity:           item.Quantity,
			UnitDiscount:       types.NewMoney(item.UnitDiscount),
			DiscountPercentage: types.NewMoney(item.DiscountPercentage),
			LineTotal:          types.NewMoney(discounted.Mul(decimal.NewFromInt(int64(item.Quantity)))),
			StockAvailable:     item.StockAvailable,
		})
	}
	resp := &cartResponse{
		Items:                items,
		TaxRate:              json.Number(snap.TaxRate.String()),
		ItemCount:            snap.ItemCount,
		TaxInclusiveSubtotal: types.NewMoney(snap.TaxInclusiveSubtotal),
		TaxAmount:            types.NewMoney(snap.TaxAmount),
		TaxExclusiveSubtotal: types.NewMoney(snap.TaxExclusiveSubtotal),
		ProductDiscountTotal: types.NewMoney(snap.ProductDiscountTotal),
		CartDiscountTotal:    types.NewMoney(snap.CartDiscountTotal),
		TotalDiscount:        types.NewMoney(snap.TotalDiscount),
		PreTaxAmount:         types.NewMoney(snap.PreTaxAmount),
		GrandTotal:           types.NewMoney(snap.GrandTotal),
	}
	if snap.Discount != nil {
		resp.Discount = &appliedDiscountResponse{
			Code:       snap.Discount.Code,
			Percentage: types.NewMoney(snap.Discount.Percentage),
		}
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
