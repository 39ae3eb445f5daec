package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultHomeCurrency = "ETB"

var (
	ErrInvalidCurrency                = errors.New("invalid currency")
	ErrUnsupportedCurrencyForProvider = errors.New("currency is not supported by provider")
)

var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

// Advisory only: the card gateway's own rejection is authoritative.
var cardGatewayCurrencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "CAD": {}, "AUD": {}, "CHF": {}, "SEK": {}, "NOK": {},
	"DKK": {}, "PLN": {}, "CZK": {}, "HUF": {}, "RON": {}, "JPY": {}, "SGD": {}, "HKD": {},
	"NZD": {}, "MXN": {}, "BRL": {}, "INR": {}, "AED": {}, "SAR": {}, "ZAR": {}, "KES": {},
	"NGN": {}, "GHS": {}, "EGP": {}, "MAD": {}, "TRY": {}, "ILS": {}, "KRW": {}, "THB": {},
	"UGX": {}, "RWF": {}, "XOF": {}, "XAF": {},
}

var hundred = decimal.NewFromInt(100)

func Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: must be a 3-letter ISO-4217 code", ErrInvalidCurrency)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: must be a 3-letter ISO-4217 code", ErrInvalidCurrency)
		}
	}
	return code, nil
}

func IsZeroDecimal(code string) bool {
	_, ok := zeroDecimal[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

func ToMinorUnits(amount decimal.Decimal, code string) int64 {
	if IsZeroDecimal(code) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

func IsSupportedByCardGateway(code string) bool {
	_, ok := cardGatewayCurrencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

type Policy struct {
	HomeCurrency string
}

func NewPolicy(homeCurrency string) Policy {
	homeCurrency = strings.ToUpper(strings.TrimSpace(homeCurrency))
	if homeCurrency == "" {
		homeCurrency = DefaultHomeCurrency
	}
	return Policy{HomeCurrency: homeCurrency}
}

// CheckMobileMoney accepts only the home currency.
func (p Policy) CheckMobileMoney(code string) error {
	if strings.ToUpper(code) != p.HomeCurrency {
		return fmt.Errorf("%w: mobile money only accepts %s, got %s", ErrUnsupportedCurrencyForProvider, p.HomeCurrency, code)
	}
	return nil
}

// CheckCard rejects the mobile-money home currency.
func (p Policy) CheckCard(code string) error {
	if strings.ToUpper(code) == p.HomeCurrency {
		return fmt.Errorf("%w: card payments do not accept %s, use mobile money", ErrUnsupportedCurrencyForProvider, p.HomeCurrency)
	}
	return nil
}
