package phone

import (
	"strings"

	"github.com/vibast-solutions/ms-go-checkout/app/factory"
)

const localLength = 9

var DefaultCountryCodes = []string{"251"}

var logger = factory.NewModuleLogger("phone-normalizer")

// Normalize converts a stored phone string into the 9-digit local form the mobile-money
// gateway expects. Unparseable input is returned as-is after digit stripping.
func Normalize(raw string) string {
	return NormalizeWithCodes(raw, DefaultCountryCodes)
}

func NormalizeWithCodes(raw string, countryCodes []string) string {
	digits := digitsOnly(raw)

	if len(digits) > localLength {
		digits = stripCountryCode(digits, countryCodes)
	}
	if strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}

	if len(digits) != localLength {
		logger.WithField("raw_length", len(raw)).
			WithField("normalized_length", len(digits)).
			Warn("phone_quality_warning")
	}

	return digits
}

func stripCountryCode(digits string, countryCodes []string) string {
	for _, code := range countryCodes {
		if len(code) != 3 {
			continue
		}
		if strings.HasPrefix(digits, "00"+code) {
			return digits[len(code)+2:]
		}
		if strings.HasPrefix(digits, code) {
			return digits[len(code):]
		}
	}
	return digits
}

func digitsOnly(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
