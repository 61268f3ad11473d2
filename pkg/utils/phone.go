package utils

import "strings"

// CleanPhone strips formatting characters from a phone identifier, leaving
// only digits. The messaging provider expects bare digits with country code.
func CleanPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// MaskPhone hides the middle digits of a phone identifier for display,
// keeping the leading three and trailing two digits visible.
func MaskPhone(phone string) string {
	digits := CleanPhone(phone)
	if len(digits) <= 5 {
		return digits
	}
	return digits[:3] + strings.Repeat("*", len(digits)-5) + digits[len(digits)-2:]
}
