package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smesmis/pos-checkout/api/responses"
	"github.com/smesmis/pos-checkout/api/validators"
	"github.com/smesmis/pos-checkout/internal/checkout"
	"github.com/smesmis/pos-checkout/internal/payments"
	"github.com/smesmis/pos-checkout/pkg/backend"
	"github.com/smesmis/pos-checkout/pkg/enums"
	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	"github.com/smesmis/pos-checkout/pkg/logger"
)

const maxCustomerNameLength = 120

type sessionTracker interface {
	Start(ctx context.Context, input checkout.Input) (*checkout.Session, error)
	Get(ctx context.Context, id string) (*checkout.Session, error)
	Cancel(ctx context.Context, id string) (*checkout.Session, error)
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	PhoneNumber   string `json:"phoneNumber" validate:"max=32"`
	CustomerID    string `json:"customerId" validate:"max=64"`
	CustomerName  string `json:"customerName"`
}

func (p checkoutRequest) toInput() (checkout.Input, error) {
	method := enums.PaymentMethodCash
	if strings.TrimSpace(p.PaymentMethod) != "" {
		parsed, err := enums.ParsePaymentMethod(p.PaymentMethod)
		if err != nil {
			return checkout.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported payment method").
				WithDetails(map[string]string{"field": "paymentMethod"})
		}
		method = parsed
	}
	return checkout.Input{
		PaymentMethod: method,
		PhoneNumber:   strings.TrimSpace(p.PhoneNumber),
		CustomerID:    strings.TrimSpace(p.CustomerID),
		CustomerName:  validators.SanitizeString(p.CustomerName, maxCustomerNameLength),
	}, nil
}

type checkoutResponse struct {
	Reference     string              `json:"reference"`
	SaleID        string              `json:"saleId"`
	InvoiceNumber string              `json:"invoiceNumber,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	Payment       *payments.Attempt   `json:"payment,omitempty"`
	Receipt       *backend.Receipt    `json:"receipt,omitempty"`
	Submitted     *cartResponse       `json:"submitted"`
	CartCleared   bool                `json:"cartCleared"`
}

func newCheckoutResponse(res *checkout.Result) *checkoutResponse {
	if res == nil {
		return nil
	}
	return &checkoutResponse{
		Reference:     res.Reference,
		SaleID:        res.SaleID,
		InvoiceNumber: res.InvoiceNumber,
		PaymentMethod: res.PaymentMethod,
		Payment:       res.Payment,
		Receipt:       res.Receipt,
		Submitted:     newCartResponse(res.Submitted),
		CartCleared:   res.CartCleared,
	}
}

type sessionResponse struct {
	ID            string                 `json:"id"`
	Status        enums.CheckoutStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod    `json:"paymentMethod"`
	Payment       *payments.Attempt      `json:"payment,omitempty"`
	Result        *checkoutResponse      `json:"result,omitempty"`
	Error         *checkout.SessionError `json:"error,omitempty"`
	StartedAt     time.Time              `json:"startedAt"`
	FinishedAt    *time.Time             `json:"finishedAt,omitempty"`
}

func newSessionResponse(s *checkout.Session) *sessionResponse {
	return &sessionResponse{
		ID:            s.ID,
		Status:        s.Status,
		PaymentMethod: s.PaymentMethod,
		Payment:       s.Payment,
		Result:        newCheckoutResponse(s.Result),
		Error:         s.Error,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
	}
}

// Checkout runs the whole checkout within the request. For M-Pesa this
// blocks until the customer confirms or the poll budget runs out.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), input, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// CheckoutSessionStart starts a background checkout and returns its session.
func CheckoutSessionStart(tracker sessionTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := tracker.Start(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, newSessionResponse(session))
	}
}

func CheckoutSessionGet(tracker sessionTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := tracker.Get(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session))
	}
}

// CheckoutSessionCancel stops polling for a running checkout. The session
// reaches its final status asynchronously.
func CheckoutSessionCancel(tracker sessionTracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := tracker.Cancel(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, newSessionResponse(session))
	}
}
