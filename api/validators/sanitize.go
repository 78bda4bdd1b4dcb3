package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, folds runs of whitespace and control characters
// into single spaces, and truncates to maxLen runes.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Join(strings.FieldsFunc(input, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	}), " ")
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			return strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}
