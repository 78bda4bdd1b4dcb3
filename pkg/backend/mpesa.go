package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

// STKPushRequest asks the gateway to prompt the customer's phone.
type STKPushRequest struct {
	Amount           int64  `json:"amount"`
	PhoneNumber      string `json:"phoneNumber"`
	AccountReference string `json:"accountReference"`
	TransactionDesc  string `json:"transactionDesc"`
}

// STKPushResponse carries the gateway-assigned request identifiers.
type STKPushResponse struct {
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ResponseDescription string `json:"ResponseDescription,omitempty"`
	CustomerMessage     string `json:"CustomerMessage,omitempty"`
}

// PaymentStatus is the latest known state of an STK push.
type PaymentStatus struct {
	Status        string
	ReceiptNumber string
	Description   string
}

type paymentStatusResponse struct {
	Status                 string `json:"status"`
	MpesaReceiptNumber     string `json:"mpesaReceiptNumber"`
	StkResponseDescription string `json:"stkResponseDescription"`
	Transaction            *struct {
		MpesaReceiptNumber     string `json:"mpesaReceiptNumber"`
		StkResponseDescription string `json:"stkResponseDescription"`
	} `json:"transaction"`
}

// InitiateSTKPush starts a mobile-money payment. A response missing either
// request id is treated as malformed.
func (c *Client) InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	var out STKPushResponse
	if err := c.do(ctx, http.MethodPost, "mpesa/stkpush/initiate", nil, req, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.CheckoutRequestID) == "" || strings.TrimSpace(out.MerchantRequestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "invalid M-Pesa response: missing request ids")
	}
	return &out, nil
}

// PaymentStatus fetches the current status of an STK push.
func (c *Client) PaymentStatus(ctx context.Context, checkoutRequestID, merchantRequestID string) (*PaymentStatus, error) {
	query := url.Values{}
	query.Set("checkout_id", checkoutRequestID)
	query.Set("merchant_id", merchantRequestID)

	var out paymentStatusResponse
	if err := c.do(ctx, http.MethodGet, "mpesa/payment-status", query, nil, &out); err != nil {
		return nil, err
	}

	status := &PaymentStatus{
		Status:        strings.TrimSpace(out.Status),
		ReceiptNumber: out.MpesaReceiptNumber,
		Description:   out.StkResponseDescription,
	}
	if out.Transaction != nil {
		if out.Transaction.MpesaReceiptNumber != "" {
			status.ReceiptNumber = out.Transaction.MpesaReceiptNumber
		}
		if out.Transaction.StkResponseDescription != "" {
			status.Description = out.Transaction.StkResponseDescription
		}
	}
	return status, nil
}
