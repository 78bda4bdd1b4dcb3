package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/internal/payments"
	"github.com/smesmis/pos-checkout/pkg/backend"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
	"github.com/smesmis/pos-checkout/pkg/types"
)

type cartReader interface {
	Snapshot(ctx context.Context) (*cart.Snapshot, error)
	Clear(ctx context.Context) (*cart.Snapshot, error)
}

type paymentRunner interface {
	Run(ctx context.Context, req payments.Request, observe payments.Observer) (*payments.Attempt, error)
}

type salesClient interface {
	CreateSale(ctx context.Context, req backend.SaleRequest) (*backend.Sale, error)
	GetReceipt(ctx context.Context, saleID string) (*backend.Receipt, error)
}

type outcomeRecorder interface {
	ObserveCheckout(method, outcome string, duration time.Duration)
}

// Service drives the operator's cart to a confirmed sale.
type Service interface {
	Checkout(ctx context.Context, input Input, observe payments.Observer) (*Result, error)
}

// Input is what the till supplies at checkout time.
type Input struct {
	Reference     string
	PaymentMethod enums.PaymentMethod
	PhoneNumber   string
	CustomerID    string
	CustomerName  string
}

// Result describes a confirmed sale.
type Result struct {
	Reference     string              `json:"reference"`
	SaleID        string              `json:"saleId"`
	InvoiceNumber string              `json:"invoiceNumber,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Payment       *payments.Attempt   `json:"payment,omitempty"`
	Receipt       *backend.Receipt    `json:"receipt,omitempty"`
	Submitted     *cart.Snapshot      `json:"submitted"`
	CartCleared   bool                `json:"cartCleared"`
}

type service struct {
	cart     cartReader
	payments paymentRunner
	sales    salesClient
	metrics  outcomeRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the checkout coordinator.
func NewService(cartSvc cartReader, runner paymentRunner, sales salesClient, metrics outcomeRecorder, logg *logger.Logger) (Service, error) {
	if cartSvc == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("payment runner required")
	}
	if sales == nil {
		return nil, fmt.Errorf("sales client required")
	}
	return &service{
		cart:     cartSvc,
		payments: runner,
		sales:    sales,
		metrics:  metrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Checkout validates the cart, collects mobile-money confirmation when
// needed, submits the sale and clears the cart. The cart is left untouched
// on every failure path.
func (s *service) Checkout(ctx context.Context, input Input, observe payments.Observer) (result *Result, err error) {
	started := s.now()
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}
	if s.logg != nil {
		ctx = s.logg.WithCheckoutID(ctx, input.Reference)
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCash
	}
	defer func() {
		s.record(method, started, err)
	}()

	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}

	snap, err := s.cart.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !snap.GrandTotal.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale total must be positive").
			WithDetails(map[string]string{"grandTotal": snap.GrandTotal.StringFixed(2)})
	}

	var attempt *payments.Attempt
	if method.RequiresConfirmation() {
		if strings.TrimSpace(input.PhoneNumber) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "M-Pesa phone number is required").
				WithDetails(map[string]string{"field": "phoneNumber"})
		}
		if _, err := payments.NormalizePhone(input.PhoneNumber); err != nil {
			return nil, err
		}
		amount := snap.GrandTotal.Round(0).IntPart()
		if amount <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
		}

		attempt, err = s.payments.Run(ctx, payments.Request{
			PhoneNumber:      input.PhoneNumber,
			Amount:           amount,
			AccountReference: fmt.Sprintf("INV-%d", s.now().UnixMilli()),
			TransactionDesc:  "Payment for " + customerLabel(input.CustomerName),
		}, observe)
		if err != nil {
			if ctx.Err() != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePaymentNotCompleted, err, "payment confirmation cancelled")
			}
			return nil, err
		}
		if !attempt.Completed() {
			return nil, pkgerrors.New(pkgerrors.CodePaymentNotCompleted, "payment not completed").
				WithDetails(paymentDetails(attempt))
		}
		// Money has been collected; finish the submission even if the caller
		// goes away.
		ctx = context.WithoutCancel(ctx)
	}

	// The cart may have changed while the payment was being confirmed.
	fresh, err := s.cart.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if fresh.IsEmpty() {
		e := pkgerrors.New(pkgerrors.CodeStateConflict, "cart was emptied before the sale could be submitted")
		if attempt != nil {
			e = e.WithDetails(paymentDetails(attempt))
		}
		return nil, e
	}

	sale, err := s.sales.CreateSale(ctx, buildSaleRequest(fresh, method, input, attempt))
	if err != nil {
		return nil, saleSubmissionError(err, attempt)
	}
	saleID := sale.ID.String()

	result = &Result{
		Reference:     input.Reference,
		SaleID:        saleID,
		InvoiceNumber: sale.InvoiceNumber,
		PaymentMethod: method,
		Payment:       attempt,
		Submitted:     fresh,
	}

	if receipt, rerr := s.sales.GetReceipt(ctx, saleID); rerr != nil {
		s.warn(ctx, "receipt generation failed", rerr)
	} else {
		result.Receipt = receipt
	}

	if _, cerr := s.cart.Clear(ctx); cerr != nil {
		s.warn(ctx, "clearing cart after sale failed", cerr)
	} else {
		result.CartCleared = true
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"sale_id":        saleID,
			"payment_method": method.String(),
			"total":          fresh.GrandTotal.StringFixed(2),
		}), "checkout completed")
	}
	return result, nil
}

func buildSaleRequest(snap *cart.Snapshot, method enums.PaymentMethod, input Input, attempt *payments.Attempt) backend.SaleRequest {
	items := make([]backend.SaleItem, 0, len(snap.Items))
	for _, item := range snap.Items {
		items = append(items, backend.SaleItem{
			ProductID:      types.ExternalID(item.ProductID),
			Quantity:       item.Quantity,
			Price:          types.NewMoney(item.UnitPrice),
			DiscountAmount: types.NewMoney(item.UnitDiscount.Mul(decimal.NewFromInt(int64(item.Quantity)))),
			ProductName:    item.Name,
			SKU:            item.SKU,
			Barcode:        item.Barcode,
		})
	}

	req := backend.SaleRequest{
		CustomerID:     types.ExternalID(strings.TrimSpace(input.CustomerID)),
		PaymentMethod:  method.String(),
		Items:          items,
		Subtotal:       types.NewMoney(snap.TaxInclusiveSubtotal),
		DiscountAmount: types.NewMoney(snap.TotalDiscount),
		TaxAmount:      types.NewMoney(snap.TaxAmount),
		Total:          types.NewMoney(snap.GrandTotal),
	}
	if snap.Discount != nil {
		req.AppliedDiscountCode = snap.Discount.Code
	}
	if attempt != nil {
		req.MpesaNumber = attempt.PhoneNumber
		req.MpesaTransactionID = attempt.CheckoutRequestID
		req.MpesaReceiptNumber = attempt.ReceiptNumber
	}
	return req
}

func saleSubmissionError(err error, attempt *payments.Attempt) error {
	if pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		return err
	}
	message := "order submission failed"
	if upstream := pkgerrors.Dump(err).UpstreamMessage; upstream != "" {
		message = upstream
	}
	wrapped := pkgerrors.Wrap(pkgerrors.CodeSaleSubmission, err, message)
	if attempt != nil {
		wrapped = wrapped.WithDetails(paymentDetails(attempt))
	}
	return wrapped
}

func paymentDetails(a *payments.Attempt) map[string]any {
	details := map[string]any{
		"paymentState": a.State.String(),
		"polls":        a.Polls,
	}
	if a.Description != "" {
		details["description"] = a.Description
	}
	if a.CheckoutRequestID != "" {
		details["checkoutRequestId"] = a.CheckoutRequestID
	}
	if a.ReceiptNumber != "" {
		details["receiptNumber"] = a.ReceiptNumber
	}
	return details
}

func customerLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "guest"
	}
	return name
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.WarnErr(ctx, msg, err)
}

func (s *service) record(method enums.PaymentMethod, started time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
		if typed := pkgerrors.As(err); typed != nil {
			outcome = strings.ToLower(string(typed.Code()))
		}
	}
	s.metrics.ObserveCheckout(method.String(), outcome, s.now().Sub(started))
}
