package midtrans

import (
	"regexp"
	"strings"
)

const (
	maxItemNameLength  = 50
	defaultItemName    = "Booking Lapangan"
	defaultPhoneNumber = "628000000000"
	countryCodePrefix  = "62"
	minPhoneDigits     = 10
	maxPhoneDigits     = 15
)

var (
	disallowedCharacters = regexp.MustCompile(`[^a-zA-Z0-9 \-]`)
	repeatedWhitespace   = regexp.MustCompile(`\s+`)
	repeatedDashes       = regexp.MustCompile(`\-+`)
	nonDigits            = regexp.MustCompile(`[^0-9]`)
)

// sanitizeText reduces a display name to the charset the gateway accepts:
// alphanumerics, spaces, and dashes, collapsed and trimmed, truncated to
// maxItemNameLength with an ellipsis marker. An empty result falls back to a
// fixed default label.
func sanitizeText(text string, maxLength int) string {
	clean := disallowedCharacters.ReplaceAllString(text, "")
	clean = repeatedWhitespace.ReplaceAllString(clean, " ")
	clean = repeatedDashes.ReplaceAllString(clean, "-")
	clean = strings.Trim(clean, " -")

	if len(clean) > maxLength {
		clean = clean[:maxLength-3] + "..."
	}
	if clean == "" {
		return defaultItemName
	}
	return clean
}

// cleanPhoneNumber normalizes a phone number to the gateway's expected
// digits-only 62-prefixed form. Anything that cannot be normalized into the
// 10-15 digit window becomes a fixed fallback number.
func cleanPhoneNumber(phone string) string {
	clean := nonDigits.ReplaceAllString(phone, "")
	if clean == "" {
		return defaultPhoneNumber
	}
	clean = strings.TrimLeft(clean, "0")
	if !strings.HasPrefix(clean, countryCodePrefix) {
		clean = countryCodePrefix + clean
	}
	if len(clean) < minPhoneDigits || len(clean) > maxPhoneDigits {
		return defaultPhoneNumber
	}
	return clean
}
