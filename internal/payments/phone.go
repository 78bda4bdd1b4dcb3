package payments

import (
	"strings"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
)

// NormalizePhone converts a Kenyan mobile number to 254XXXXXXXXX. Accepted
// inputs are 07XXXXXXXX, 7XXXXXXXX and 254XXXXXXXXX; anything that is not a
// digit is ignored.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	var normalized string
	switch {
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		normalized = "254" + digits[1:]
	case len(digits) == 9 && strings.HasPrefix(digits, "7"):
		normalized = "254" + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "254"):
		normalized = digits
	}
	if normalized == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number must look like 07XXXXXXXX, 7XXXXXXXX or 254XXXXXXXXX").
			WithDetails(map[string]string{"field": "phoneNumber"})
	}
	return normalized, nil
}
