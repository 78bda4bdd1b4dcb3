package enums

import "fmt"

// PaymentAttemptState tracks a single mobile-money attempt from initiation to a terminal state.
type PaymentAttemptState string

const (
	PaymentAttemptNotStarted           PaymentAttemptState = "not_started"
	PaymentAttemptInitiating           PaymentAttemptState = "initiating"
	PaymentAttemptAwaitingConfirmation PaymentAttemptState = "awaiting_confirmation"
	PaymentAttemptCompleted            PaymentAttemptState = "completed"
	PaymentAttemptFailed               PaymentAttemptState = "failed"
	PaymentAttemptTimedOut             PaymentAttemptState = "timed_out"
)

var validPaymentAttemptStates = []PaymentAttemptState{
	PaymentAttemptNotStarted,
	PaymentAttemptInitiating,
	PaymentAttemptAwaitingConfirmation,
	PaymentAttemptCompleted,
	PaymentAttemptFailed,
	PaymentAttemptTimedOut,
}

// String implements fmt.Stringer.
func (s PaymentAttemptState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known PaymentAttemptState.
func (s PaymentAttemptState) IsValid() bool {
	for _, candidate := range validPaymentAttemptStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition can occur.
func (s PaymentAttemptState) IsTerminal() bool {
	switch s {
	case PaymentAttemptCompleted, PaymentAttemptFailed, PaymentAttemptTimedOut:
		return true
	}
	return false
}

// ParsePaymentAttemptState converts raw input into a PaymentAttemptState.
func ParsePaymentAttemptState(value string) (PaymentAttemptState, error) {
	for _, candidate := range validPaymentAttemptStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment attempt state %q", value)
}
