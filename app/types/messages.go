package types

import (
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/baseurl"
)

type CreateCheckoutRequest struct {
	Provider    string            `json:"provider"`
	StudentId   uint64            `json:"studentId,omitempty"`
	ChatId      string            `json:"chatId,omitempty"`
	Amount      *decimal.Decimal  `json:"amount,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Months      []string          `json:"months,omitempty"`
	ReturnUrl   string            `json:"returnUrl,omitempty"`
	CallbackUrl string            `json:"callbackUrl,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Mode        string            `json:"mode,omitempty"`

	Origin baseurl.Request `json:"-"`
}

func (x *CreateCheckoutRequest) GetProvider() string {
	if x == nil {
		return ""
	}
	return x.Provider
}

func (x *CreateCheckoutRequest) GetStudentId() uint64 {
	if x == nil {
		return 0
	}
	return x.StudentId
}

func (x *CreateCheckoutRequest) GetChatId() string {
	if x == nil {
		return ""
	}
	return x.ChatId
}

func (x *CreateCheckoutRequest) GetAmount() decimal.NullDecimal {
	if x == nil || x.Amount == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*x.Amount)
}

func (x *CreateCheckoutRequest) GetCurrency() string {
	if x == nil {
		return ""
	}
	return x.Currency
}

func (x *CreateCheckoutRequest) GetMonths() []string {
	if x == nil {
		return nil
	}
	return x.Months
}

func (x *CreateCheckoutRequest) GetReturnUrl() string {
	if x == nil {
		return ""
	}
	return x.ReturnUrl
}

func (x *CreateCheckoutRequest) GetCallbackUrl() string {
	if x == nil {
		return ""
	}
	return x.CallbackUrl
}

func (x *CreateCheckoutRequest) GetMetadata() map[string]string {
	if x == nil {
		return nil
	}
	return x.Metadata
}

func (x *CreateCheckoutRequest) GetMode() string {
	if x == nil {
		return ""
	}
	return x.Mode
}

func (x *CreateCheckoutRequest) GetOrigin() baseurl.Request {
	if x == nil {
		return baseurl.Request{}
	}
	return x.Origin
}

type GetCheckoutRequest struct {
	TxRef string `json:"txRef"`
}

func (x *GetCheckoutRequest) GetTxRef() string {
	if x == nil {
		return ""
	}
	return x.TxRef
}

type ListCheckoutsRequest struct {
	StudentId uint64 `json:"studentId,omitempty"`
	HasStatus bool   `json:"hasStatus,omitempty"`
	Status    int32  `json:"status,omitempty"`
	Provider  int32  `json:"provider,omitempty"`
	Limit     int32  `json:"limit,omitempty"`
	Offset    int32  `json:"offset,omitempty"`
}

func (x *ListCheckoutsRequest) GetStudentId() uint64 {
	if x == nil {
		return 0
	}
	return x.StudentId
}

func (x *ListCheckoutsRequest) GetHasStatus() bool {
	if x == nil {
		return false
	}
	return x.HasStatus
}

func (x *ListCheckoutsRequest) GetStatus() int32 {
	if x == nil {
		return 0
	}
	return x.Status
}

func (x *ListCheckoutsRequest) GetProvider() int32 {
	if x == nil {
		return 0
	}
	return x.Provider
}

func (x *ListCheckoutsRequest) GetLimit() int32 {
	if x == nil {
		return 0
	}
	return x.Limit
}

func (x *ListCheckoutsRequest) GetOffset() int32 {
	if x == nil {
		return 0
	}
	return x.Offset
}

type Checkout struct {
	TxRef       string            `json:"txRef"`
	StudentId   uint64            `json:"studentId"`
	Provider    string            `json:"provider"`
	Mode        string            `json:"mode"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Status      string            `json:"status"`
	CheckoutUrl string            `json:"checkoutUrl,omitempty"`
	Months      []string          `json:"months"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"createdAt"`
	UpdatedAt   string            `json:"updatedAt"`
}

type CreateCheckoutResponse struct {
	Success     bool      `json:"success"`
	TxRef       string    `json:"txRef"`
	CheckoutUrl string    `json:"checkoutUrl"`
	Checkout    *Checkout `json:"checkout"`
}

type CheckoutEnvelopeResponse struct {
	Checkout *Checkout `json:"checkout"`
}

type ListCheckoutsResponse struct {
	Checkouts []*Checkout `json:"checkouts"`
}

type ErrorResponse struct {
	Success           bool              `json:"success"`
	Error             string            `json:"error"`
	Code              string            `json:"code"`
	TxRef             string            `json:"txRef,omitempty"`
	RetryAfterSeconds int64             `json:"retryAfterSeconds,omitempty"`
	Details           map[string]string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
