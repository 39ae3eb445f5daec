package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	CheckoutStatusInitialized int32 = 1
	CheckoutStatusPending     int32 = 2
	CheckoutStatusSucceeded   int32 = 10
	CheckoutStatusFailed      int32 = 20
	CheckoutStatusExpired     int32 = 30
)

const (
	ProviderCard        int32 = 1
	ProviderMobileMoney int32 = 2
)

const (
	IntentTuition int32 = 1
	IntentDeposit int32 = 2
)

var ErrInvalidTransition = errors.New("invalid checkout status transition")

type CheckoutAttempt struct {
	ID uint64

	TxRef     string
	StudentID uint64

	Provider int32
	Intent   int32

	Amount   decimal.Decimal
	Currency string

	Status      int32
	CheckoutURL *string

	RequestedMonths []string
	Metadata        map[string]string

	// DedupKey is set while the attempt is initialized or pending and cleared afterwards.
	DedupKey *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *CheckoutAttempt) Active() bool {
	return a.Status == CheckoutStatusInitialized || a.Status == CheckoutStatusPending
}

// Advance moves the attempt forward. A pending transition requires a checkout url.
func (a *CheckoutAttempt) Advance(to int32, checkoutURL *string, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, CheckoutStatusName(a.Status), CheckoutStatusName(to))
	}
	if to == CheckoutStatusPending {
		if checkoutURL == nil || *checkoutURL == "" {
			return fmt.Errorf("%w: pending requires a checkout url", ErrInvalidTransition)
		}
		url := *checkoutURL
		a.CheckoutURL = &url
	}

	a.Status = to
	if !a.Active() {
		a.DedupKey = nil
	}
	a.UpdatedAt = now
	return nil
}

func (a *CheckoutAttempt) SetMetadata(key, value string) {
	if a.Metadata == nil {
		a.Metadata = map[string]string{}
	}
	a.Metadata[key] = value
}

func CanTransition(from, to int32) bool {
	switch from {
	case CheckoutStatusInitialized:
		return to == CheckoutStatusPending || to == CheckoutStatusFailed
	case CheckoutStatusPending:
		return to == CheckoutStatusSucceeded || to == CheckoutStatusFailed || to == CheckoutStatusExpired
	default:
		return false
	}
}

func DedupKeyFor(studentID uint64, amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%d:%s:%s", studentID, amount.StringFixed(2), currency)
}

func CheckoutStatusName(status int32) string {
	switch status {
	case CheckoutStatusInitialized:
		return "initialized"
	case CheckoutStatusPending:
		return "pending"
	case CheckoutStatusSucceeded:
		return "succeeded"
	case CheckoutStatusFailed:
		return "failed"
	case CheckoutStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func ParseCheckoutStatus(name string) (int32, bool) {
	for _, status := range []int32{
		CheckoutStatusInitialized,
		CheckoutStatusPending,
		CheckoutStatusSucceeded,
		CheckoutStatusFailed,
		CheckoutStatusExpired,
	} {
		if CheckoutStatusName(status) == name {
			return status, true
		}
	}
	return 0, false
}

func ProviderName(provider int32) string {
	switch provider {
	case ProviderCard:
		return "card"
	case ProviderMobileMoney:
		return "mobileMoney"
	default:
		return "unknown"
	}
}

func IntentName(intent int32) string {
	switch intent {
	case IntentDeposit:
		return "deposit"
	default:
		return "tuition"
	}
}

func ParseProvider(name string) (int32, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "card":
		return ProviderCard, true
	case "mobilemoney", "mobile_money":
		return ProviderMobileMoney, true
	default:
		return 0, false
	}
}

func ParseIntent(name string) (int32, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tuition":
		return IntentTuition, true
	case "deposit":
		return IntentDeposit, true
	default:
		return 0, false
	}
}
