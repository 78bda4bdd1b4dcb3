package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/types"
)

// SaleItem is one line of a sale submission.
type SaleItem struct {
	ProductID      types.ExternalID `json:"productId"`
	Quantity       int              `json:"quantity"`
	Price          types.Money      `json:"price"`
	DiscountAmount types.Money      `json:"discountAmount"`
	ProductName    string           `json:"productName,omitempty"`
	SKU            string           `json:"sku,omitempty"`
	Barcode        string           `json:"barcode,omitempty"`
}

// SaleRequest is the body of POST /sales.
type SaleRequest struct {
	CustomerID          types.ExternalID `json:"customerId"`
	PaymentMethod       string           `json:"paymentMethod"`
	Items               []SaleItem       `json:"items"`
	Subtotal            types.Money      `json:"subtotal"`
	DiscountAmount      types.Money      `json:"discountAmount"`
	TaxAmount           types.Money      `json:"taxAmount"`
	Total               types.Money      `json:"total"`
	AppliedDiscountCode string           `json:"appliedDiscountCode,omitempty"`
	MpesaNumber         string           `json:"mpesaNumber,omitempty"`
	MpesaTransactionID  string           `json:"mpesaTransactionId,omitempty"`
	MpesaReceiptNumber  string           `json:"mpesaReceiptNumber,omitempty"`
}

// Sale is the backend's confirmation of a created sale.
type Sale struct {
	ID            types.ExternalID `json:"id"`
	InvoiceNumber string           `json:"invoiceNumber,omitempty"`
	Total         types.Money      `json:"total"`
}

// ReceiptItem is one printed receipt line.
type ReceiptItem struct {
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	UnitPrice   types.Money `json:"unitPrice"`
	Discount    types.Money `json:"discount"`
	Total       types.Money `json:"total"`
}

// Receipt is the backend-generated receipt for a sale.
type Receipt struct {
	ReceiptNumber  string        `json:"receiptNumber"`
	Date           string        `json:"date"`
	CustomerName   string        `json:"customerName"`
	Items          []ReceiptItem `json:"items"`
	Subtotal       types.Money   `json:"subtotal"`
	DiscountAmount types.Money   `json:"discountAmount"`
	TaxAmount      types.Money   `json:"taxAmount"`
	PreTaxAmount   types.Money   `json:"preTaxAmount"`
	Total          types.Money   `json:"total"`
}

// CreateSale submits a finalized sale. A 2xx answer without an id is not a
// confirmation.
func (c *Client) CreateSale(ctx context.Context, req SaleRequest) (*Sale, error) {
	var out Sale
	if err := c.do(ctx, http.MethodPost, "sales", nil, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "sale response missing id")
	}
	return &out, nil
}

// GetReceipt loads the receipt generated for a sale.
func (c *Client) GetReceipt(ctx context.Context, saleID string) (*Receipt, error) {
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale id is required")
	}
	var out Receipt
	if err := c.do(ctx, http.MethodGet, "sales/receipt/"+url.PathEscape(saleID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
