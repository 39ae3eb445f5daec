package provider

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

type Customer struct {
	StudentID uint64
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

type InitializeInput struct {
	TxRef  string
	Intent int32

	Amount   decimal.Decimal
	Currency string

	Customer        Customer
	RequestedMonths []string

	ReturnURL   string
	CallbackURL string

	Metadata map[string]string
}

type InitializeOutput struct {
	CheckoutURL string
	SessionID   string
	// Salvaged is set when the url was recovered from a non-JSON success body.
	Salvaged bool
}

type Adapter interface {
	Code() int32
	CheckConfiguration() error
	Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error)
}

func describePurchase(input *InitializeInput) string {
	label := "Tuition"
	if input.Intent == entity.IntentDeposit {
		label = "Deposit"
	}

	name := strings.TrimSpace(strings.TrimSpace(input.Customer.FirstName) + " " + strings.TrimSpace(input.Customer.LastName))
	if name != "" {
		label += " - " + name
	}

	months := make([]string, 0, len(input.RequestedMonths))
	for _, month := range input.RequestedMonths {
		if m := strings.TrimSpace(month); m != "" {
			months = append(months, m)
		}
	}
	if len(months) > 0 {
		label += " (" + strings.Join(months, ", ") + ")"
	}

	return label
}
