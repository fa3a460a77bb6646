package currency

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyCodePattern = regexp.MustCompile(`[A-Z]{3}`)
	nonNumericPattern   = regexp.MustCompile(`[^0-9.]`)
)

// ParseAmount extracts a numeric magnitude and a 3-letter currency code from
// free text such as "5000 rs", "USD 100" or "₹ 500". When no uppercase code
// is present the fallback currency (typically the company's base currency)
// is used. Unparseable magnitudes yield zero.
func ParseAmount(text, fallbackCurrency string) (decimal.Decimal, string) {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return decimal.Zero, fallbackCurrency
	}

	code := fallbackCurrency
	if match := currencyCodePattern.FindString(cleaned); match != "" {
		code = match
	}

	digits := nonNumericPattern.ReplaceAllString(cleaned, "")
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, code
	}

	return amount, code
}
