package utils

import "regexp"

var emailLocalRegex = regexp.MustCompile(`^([^@])[^@]*(@.+)$`)

// MaskEmail hides the local part of an address past its first character,
// e.g. "ops@example.com" → "o***@example.com". Non-addresses are fully masked.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	if !emailLocalRegex.MatchString(email) {
		return "***"
	}
	return emailLocalRegex.ReplaceAllString(email, "${1}***${2}")
}
