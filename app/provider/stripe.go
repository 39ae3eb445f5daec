package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/currency"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
)

const (
	stripeName           = "card"
	defaultStripeBaseURL = "https://api.stripe.com"
	stripeSessionParam   = "{CHECKOUT_SESSION_ID}"
	maxResponseBytes     = 1 << 20
)

type StripeConfig struct {
	SecretKey   string
	APIBaseURL  string
	HTTPTimeout time.Duration
}

// StripeProvider opens hosted checkout sessions on the card gateway.
type StripeProvider struct {
	cfg    StripeConfig
	client *http.Client
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultStripeBaseURL
	}

	return &StripeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *StripeProvider) Code() int32 {
	return entity.ProviderCard
}

func (p *StripeProvider) CheckConfiguration() error {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return configurationError(stripeName, "card gateway secret key is not configured")
	}
	return nil
}

func (p *StripeProvider) Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error) {
	if err := p.CheckConfiguration(); err != nil {
		return nil, err
	}

	logger := factory.NewModuleLogger("stripe-provider").WithField("tx_ref", input.TxRef)
	if !currency.IsSupportedByCardGateway(input.Currency) {
		logger.WithField("currency", input.Currency).Warn("currency is not on the card gateway allow-list, sending anyway")
	}

	values := url.Values{}
	values.Set("mode", "payment")
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(input.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(currency.ToMinorUnits(input.Amount, input.Currency), 10))
	values.Set("line_items[0][price_data][product_data][name]", describePurchase(input))
	values.Set("line_items[0][price_data][product_data][metadata][transactionReference]", input.TxRef)
	values.Set("success_url", withQuery(input.ReturnURL, "tx_ref="+url.QueryEscape(input.TxRef)+"&session_id="+stripeSessionParam))
	values.Set("cancel_url", withQuery(input.ReturnURL, "tx_ref="+url.QueryEscape(input.TxRef)+"&status=cancelled"))
	values.Set("client_reference_id", input.TxRef)
	if email := strings.TrimSpace(input.Customer.Email); email != "" {
		values.Set("customer_email", email)
	}

	for k, v := range input.Metadata {
		values.Set("metadata["+k+"]", v)
	}
	values.Set("metadata[tx_ref]", input.TxRef)
	values.Set("metadata[student_id]", strconv.FormatUint(input.Customer.StudentID, 10))
	values.Set("metadata[intent]", entity.IntentName(input.Intent))
	if len(input.RequestedMonths) > 0 {
		values.Set("metadata[months]", strings.Join(input.RequestedMonths, ","))
	}
	if input.CallbackURL != "" {
		values.Set("metadata[callback_url]", input.CallbackURL)
	}

	status, body, err := p.postForm(ctx, "/v1/checkout/sessions", values)
	if err != nil {
		return nil, protocolError(stripeName, ReasonTransport, 0, nil, err)
	}

	if status >= 300 {
		return nil, p.classifyFailure(status, body)
	}

	var payload struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, protocolError(stripeName, ReasonNonJSONBody, status, body, err)
	}

	checkoutURL := strings.TrimSpace(payload.URL)
	if checkoutURL == "" {
		return nil, protocolError(stripeName, ReasonEmptyCheckoutURL, status, body, nil)
	}

	return &InitializeOutput{
		CheckoutURL: checkoutURL,
		SessionID:   strings.TrimSpace(payload.ID),
	}, nil
}

func (p *StripeProvider) classifyFailure(status int, body []byte) error {
	var envelope struct {
		Error *struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeErr := json.Unmarshal(body, &envelope)

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		gwErr := configurationError(stripeName, "card gateway rejected the configured credentials")
		gwErr.HTTPStatus = status
		return gwErr
	}
	if decodeErr != nil {
		return protocolError(stripeName, ReasonNonJSONBody, status, body, decodeErr)
	}
	if envelope.Error == nil {
		return protocolError(stripeName, ReasonUnexpectedShape, status, body, nil)
	}

	switch envelope.Error.Type {
	case "invalid_request_error", "card_error":
		message := strings.TrimSpace(envelope.Error.Message)
		if message == "" {
			message = "card gateway rejected the request"
		}
		return rejectionError(stripeName, message, status, body)
	default:
		return protocolError(stripeName, ReasonUnexpectedShape, status, body, nil)
	}
}

func (p *StripeProvider) postForm(ctx context.Context, path string, values url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(p.cfg.SecretKey))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}

// withQuery appends a raw query fragment, keeping any query the url already carries.
func withQuery(rawURL, query string) string {
	rawURL = strings.TrimSpace(rawURL)
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}
