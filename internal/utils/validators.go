package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips separators from a phone number and rewrites Israeli
// numbers to the +972 form. Anything it does not recognise is returned with
// only the separators removed.
func NormalizePhone(phone string) string {
	digits := nonPhoneChars.ReplaceAllString(strings.TrimSpace(phone), "")
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "+"):
		return digits
	case strings.HasPrefix(digits, "972") && len(digits) >= 11:
		return "+" + digits
	case strings.HasPrefix(digits, "0") && (len(digits) == 9 || len(digits) == 10):
		return "+972" + digits[1:]
	default:
		return digits
	}
}

// TelLink returns a tel: URI for the phone, or "" when there is no number.
func TelLink(phone string) string {
	n := NormalizePhone(phone)
	if n == "" {
		return ""
	}
	return "tel:" + n
}

// ValidateLocation checks latitude and longitude ranges.
func ValidateLocation(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("latitude must be within [-90, 90], got %.6f", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("longitude must be within [-180, 180], got %.6f", longitude)
	}
	return nil
}
