package utils

import (
	"fmt"
	"regexp"
)

var (
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)
	controlRegex  = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ValidateCurrencyCode validates an ISO 4217 style currency code
func ValidateCurrencyCode(code string) error {
	if !currencyRegex.MatchString(code) {
		return fmt.Errorf("invalid currency code: %s", code)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlRegex.ReplaceAllString(s, "")
}
