package enums

import (
	"fmt"
	"strings"
)

// MpesaStatus is the transaction status reported by the payment-status endpoint.
type MpesaStatus string

const (
	MpesaStatusPending   MpesaStatus = "PENDING"
	MpesaStatusCompleted MpesaStatus = "COMPLETED"
	MpesaStatusFailed    MpesaStatus = "FAILED"
	MpesaStatusCancelled MpesaStatus = "CANCELLED"
)

var validMpesaStatuses = []MpesaStatus{
	MpesaStatusPending,
	MpesaStatusCompleted,
	MpesaStatusFailed,
	MpesaStatusCancelled,
}

// String implements fmt.Stringer.
func (m MpesaStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MpesaStatus.
func (m MpesaStatus) IsValid() bool {
	for _, candidate := range validMpesaStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMpesaStatus converts raw input into a MpesaStatus. The gateway is not
// consistent about casing, so matching ignores it.
func ParseMpesaStatus(value string) (MpesaStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validMpesaStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mpesa status %q", value)
}
