package payments

import (
	"time"

	"github.com/smesmis/pos-checkout/pkg/enums"
)

// Attempt is one mobile-money confirmation run.
type Attempt struct {
	State             enums.PaymentAttemptState `json:"state"`
	PhoneNumber       string                    `json:"phoneNumber"`
	Amount            int64                     `json:"amount"`
	CheckoutRequestID string                    `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string                    `json:"merchantRequestId,omitempty"`
	ReceiptNumber     string                    `json:"receiptNumber,omitempty"`
	Description       string                    `json:"description,omitempty"`
	Polls             int                       `json:"polls"`
	LastPolledAt      *time.Time                `json:"lastPolledAt,omitempty"`
	StartedAt         time.Time                 `json:"startedAt"`
	FinishedAt        *time.Time                `json:"finishedAt,omitempty"`
}

// Completed reports whether the customer confirmed the payment.
func (a *Attempt) Completed() bool {
	return a != nil && a.State == enums.PaymentAttemptCompleted
}

func (a *Attempt) clone() Attempt {
	out := *a
	if a.LastPolledAt != nil {
		t := *a.LastPolledAt
		out.LastPolledAt = &t
	}
	if a.FinishedAt != nil {
		t := *a.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
