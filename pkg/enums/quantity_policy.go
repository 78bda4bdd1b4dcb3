package enums

import "fmt"

// QuantityPolicy controls whether direct quantity updates are checked against stock.
type QuantityPolicy string

const (
	// QuantityPolicyUnchecked sets the requested quantity without a stock check.
	QuantityPolicyUnchecked QuantityPolicy = "unchecked"
	// QuantityPolicyEnforceStock ignores updates that would exceed the line's stock.
	QuantityPolicyEnforceStock QuantityPolicy = "enforce_stock"
)

var validQuantityPolicies = []QuantityPolicy{
	QuantityPolicyUnchecked,
	QuantityPolicyEnforceStock,
}

// String implements fmt.Stringer.
func (q QuantityPolicy) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QuantityPolicy.
func (q QuantityPolicy) IsValid() bool {
	for _, candidate := range validQuantityPolicies {
		if candidate == q {
			return true
		}
	}
	return false
}

// ParseQuantityPolicy converts raw input into a QuantityPolicy.
func ParseQuantityPolicy(value string) (QuantityPolicy, error) {
	for _, candidate := range validQuantityPolicies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quantity policy %q", value)
}
