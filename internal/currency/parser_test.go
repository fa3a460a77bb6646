package currency

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		fallback     string
		wantAmount   string
		wantCurrency string
	}{
		{"plain number", "125.50", "USD", "125.50", "USD"},
		{"lowercase suffix", "5000 rs", "INR", "5000", "INR"},
		{"code before amount", "USD 100", "INR", "100", "USD"},
		{"symbol prefix", "₹ 500", "INR", "500", "INR"},
		{"code after amount", "99.99 EUR", "USD", "99.99", "EUR"},
		{"thousands separators", "1,234.56", "USD", "1234.56", "USD"},
		{"empty input", "", "USD", "0", "USD"},
		{"whitespace only", "   ", "USD", "0", "USD"},
		{"no digits", "free lunch", "USD", "0", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, code := ParseAmount(tt.text, tt.fallback)
			if !amount.Equal(decimal.RequireFromString(tt.wantAmount)) {
				t.Errorf("ParseAmount(%q) amount = %v, want %v", tt.text, amount, tt.wantAmount)
			}
			if code != tt.wantCurrency {
				t.Errorf("ParseAmount(%q) currency = %v, want %v", tt.text, code, tt.wantCurrency)
			}
		})
	}
}
