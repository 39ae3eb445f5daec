package provider

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindProtocol      ErrorKind = "protocol"
	KindRejection     ErrorKind = "rejection"
)

const (
	ReasonNonJSONBody          = "non_json_body"
	ReasonUnexpectedShape      = "unexpected_shape"
	ReasonEmptyCheckoutURL     = "empty_checkout_url"
	ReasonAnomalousCheckoutURL = "anomalous_checkout_url"
	ReasonTransport            = "transport"
)

const maxExcerptBytes = 512

type GatewayError struct {
	Provider   string
	Kind       ErrorKind
	Reason     string
	Message    string
	HTTPStatus int
	Excerpt    string
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s gateway %s error", e.Provider, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.HTTPStatus > 0 {
		msg += fmt.Sprintf(" [status=%d]", e.HTTPStatus)
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func configurationError(provider, message string) *GatewayError {
	return &GatewayError{Provider: provider, Kind: KindConfiguration, Message: message}
}

func protocolError(provider, reason string, status int, body []byte, err error) *GatewayError {
	return &GatewayError{
		Provider:   provider,
		Kind:       KindProtocol,
		Reason:     reason,
		Message:    "unexpected response from payment gateway",
		HTTPStatus: status,
		Excerpt:    excerpt(body),
		Err:        err,
	}
}

func rejectionError(provider, message string, status int, body []byte) *GatewayError {
	return &GatewayError{
		Provider:   provider,
		Kind:       KindRejection,
		Message:    message,
		HTTPStatus: status,
		Excerpt:    excerpt(body),
	}
}

func excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxExcerptBytes {
		return strings.ToValidUTF8(text, "")
	}
	cut := maxExcerptBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return strings.ToValidUTF8(text[:cut], "")
}
