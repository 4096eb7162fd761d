package utils

import (
	"strings"
)

var digitSeparators = strings.NewReplacer(" ", "", "\u00a0", "", ",", "")

// NormalizeDigits strips spaces, non-breaking spaces and commas, and reports
// whether the remainder is a non-empty run of ASCII digits
func NormalizeDigits(value string) (string, bool) {
	normalized := digitSeparators.Replace(strings.TrimSpace(value))
	if normalized == "" {
		return "", false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return "", false // Non-digit character
		}
	}
	return normalized, true
}

// IsPhone checks the "+<digits>" phone format
func IsPhone(s string) bool {
	if len(s) < 2 || s[0] != '+' {
		return false
	}
	_, ok := NormalizeDigits(s[1:])
	return ok && !strings.ContainsAny(s[1:], " \u00a0,")
}
