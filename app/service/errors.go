package service

import (
	"errors"
	"time"
)

var (
	ErrInvalidRequest                 = errors.New("invalid request")
	ErrSubjectNotFound                = errors.New("student not found")
	ErrAmbiguousSubject               = errors.New("chat id matches more than one student")
	ErrUnsupportedCurrencyForProvider = errors.New("currency is not supported by provider")
	ErrDuplicatePayment               = errors.New("duplicate payment in flight")
	ErrRateLimitExceeded              = errors.New("rate limit exceeded")
	ErrGatewayConfiguration           = errors.New("payment gateway is not configured")
	ErrGatewayProtocol                = errors.New("payment gateway returned an unexpected response")
	ErrGatewayRejection               = errors.New("payment gateway rejected the request")
	ErrCheckoutNotFound               = errors.New("checkout not found")
)

const (
	CodeValidation           = "ValidationError"
	CodeSubjectNotFound      = "SubjectNotFound"
	CodeAmbiguousSubject     = "AmbiguousSubject"
	CodeUnsupportedCurrency  = "UnsupportedCurrencyForProvider"
	CodeDuplicatePayment     = "DuplicatePayment"
	CodeRateLimitExceeded    = "RateLimitExceeded"
	CodeGatewayConfiguration = "GatewayConfigurationError"
	CodeGatewayProtocol      = "GatewayProtocolError"
	CodeGatewayRejection     = "GatewayRejection"
	CodeCheckoutNotFound     = "CheckoutNotFound"
	CodeInternal             = "InternalError"
)

// CheckoutError is the caller-facing failure of a checkout operation. TxRef is set once a
// ledger row exists.
type CheckoutError struct {
	Code       string
	Message    string
	TxRef      string
	RetryAfter time.Duration
	Details    map[string]string
	Err        error
}

func (e *CheckoutError) Error() string {
	return e.Message
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

func newCheckoutError(code string, err error, message string) *CheckoutError {
	if message == "" {
		message = err.Error()
	}
	return &CheckoutError{Code: code, Message: message, Err: err}
}

func validationError(message string) *CheckoutError {
	return newCheckoutError(CodeValidation, ErrInvalidRequest, message)
}

// AsCheckoutError returns err as a *CheckoutError, wrapping unknown errors as internal.
func AsCheckoutError(err error) *CheckoutError {
	if err == nil {
		return nil
	}
	var checkoutErr *CheckoutError
	if errors.As(err, &checkoutErr) {
		return checkoutErr
	}
	return &CheckoutError{Code: CodeInternal, Message: "internal server error", Err: err}
}
