package utils

import "testing"

func TestValidateCurrencyCode(t *testing.T) {
	for _, code := range []string{"USD", "EUR", "INR"} {
		if err := ValidateCurrencyCode(code); err != nil {
			t.Errorf("ValidateCurrencyCode(%q) failed: %v", code, err)
		}
	}
	for _, code := range []string{"", "usd", "US", "DOLLARS", "U$D"} {
		if err := ValidateCurrencyCode(code); err == nil {
			t.Errorf("ValidateCurrencyCode(%q) should fail", code)
		}
	}
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"tabs\tand\nnewlines", "tabsandnewlines"},
		{"null\x00byte", "nullbyte"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := SanitizeString(tt.in); got != tt.want {
			t.Errorf("SanitizeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
