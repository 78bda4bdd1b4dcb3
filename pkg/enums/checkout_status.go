package enums

import "fmt"

// CheckoutStatus tracks an asynchronous checkout session.
type CheckoutStatus string

const (
	CheckoutStatusRunning   CheckoutStatus = "running"
	CheckoutStatusSucceeded CheckoutStatus = "succeeded"
	CheckoutStatusFailed    CheckoutStatus = "failed"
	CheckoutStatusCancelled CheckoutStatus = "cancelled"
)

var validCheckoutStatuses = []CheckoutStatus{
	CheckoutStatusRunning,
	CheckoutStatusSucceeded,
	CheckoutStatusFailed,
	CheckoutStatusCancelled,
}

// String implements fmt.Stringer.
func (c CheckoutStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CheckoutStatus.
func (c CheckoutStatus) IsValid() bool {
	for _, candidate := range validCheckoutStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsFinal reports whether the session has stopped running.
func (c CheckoutStatus) IsFinal() bool {
	return c != CheckoutStatusRunning
}

// ParseCheckoutStatus converts raw input into a CheckoutStatus.
func ParseCheckoutStatus(value string) (CheckoutStatus, error) {
	for _, candidate := range validCheckoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout status %q", value)
}
