package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes how the customer settles a sale at the till.
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "CASH"
	PaymentMethodMpesa PaymentMethod = "MPESA"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodMpesa,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresConfirmation reports whether the method needs the asynchronous
// mobile-money confirmation before a sale can be submitted.
func (p PaymentMethod) RequiresConfirmation() bool {
	return p == PaymentMethodMpesa
}

// ParsePaymentMethod converts raw input into a PaymentMethod. Matching is case-insensitive.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
