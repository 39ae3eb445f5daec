package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout/app/currency"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/phone"
)

const (
	chapaName               = "mobileMoney"
	defaultChapaBaseURL     = "https://api.chapa.co"
	defaultChapaTitle       = "School Payment"
	maxCustomizationTitle   = 16
	maxCustomizationDetails = 50
)

var (
	embeddedCheckoutURL = regexp.MustCompile(`https://checkout\.[A-Za-z0-9.\-]+/checkout/payment/[A-Za-z0-9_\-]+`)
	bearerPrefix        = regexp.MustCompile(`(?i)^bearer(\s+|$)`)
	customizationChars  = regexp.MustCompile(`[^A-Za-z0-9 ._\-]+`)
)

type ChapaConfig struct {
	SecretKey          string
	APIBaseURL         string
	HomeCurrency       string
	CustomizationTitle string
	HTTPTimeout        time.Duration
}

// ChapaProvider initializes mobile-money transactions. The gateway only reports completion
// through the browser redirect, so no callback url is sent.
type ChapaProvider struct {
	cfg    ChapaConfig
	client *http.Client
}

type chapaEnvelope struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewChapaProvider(cfg ChapaConfig) *ChapaProvider {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultChapaBaseURL
	}
	if code, err := currency.Normalize(cfg.HomeCurrency); err == nil {
		cfg.HomeCurrency = code
	} else {
		cfg.HomeCurrency = currency.DefaultHomeCurrency
	}
	if strings.TrimSpace(cfg.CustomizationTitle) == "" {
		cfg.CustomizationTitle = defaultChapaTitle
	}

	return &ChapaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *ChapaProvider) Code() int32 {
	return entity.ProviderMobileMoney
}

func (p *ChapaProvider) CheckConfiguration() error {
	if authorizationValue(p.cfg.SecretKey) == "" {
		return configurationError(chapaName, "mobile money gateway secret key is not configured")
	}
	return nil
}

func (p *ChapaProvider) Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error) {
	if err := p.CheckConfiguration(); err != nil {
		return nil, err
	}

	logger := factory.NewModuleLogger("chapa-provider").WithField("tx_ref", input.TxRef)

	values := url.Values{}
	values.Set("amount", input.Amount.StringFixed(2))
	values.Set("currency", p.cfg.HomeCurrency)
	values.Set("tx_ref", input.TxRef)
	values.Set("phone_number", phone.Normalize(input.Customer.Phone))
	values.Set("first_name", strings.TrimSpace(input.Customer.FirstName))
	values.Set("last_name", strings.TrimSpace(input.Customer.LastName))
	if email := strings.TrimSpace(input.Customer.Email); email != "" {
		values.Set("email", email)
	}
	values.Set("return_url", withQuery(input.ReturnURL, "tx_ref="+url.QueryEscape(input.TxRef)))
	values.Set("customization[title]", customizationText(p.cfg.CustomizationTitle, maxCustomizationTitle))
	values.Set("customization[description]", customizationText(describePurchase(input), maxCustomizationDetails))

	for k, v := range input.Metadata {
		values.Set("meta["+k+"]", v)
	}
	values.Set("meta[student_id]", strconv.FormatUint(input.Customer.StudentID, 10))
	values.Set("meta[intent]", entity.IntentName(input.Intent))
	if len(input.RequestedMonths) > 0 {
		values.Set("meta[months]", strings.Join(input.RequestedMonths, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/v1/transaction/initialize", strings.NewReader(values.Encode()))
	if err != nil {
		return nil, protocolError(chapaName, ReasonTransport, 0, nil, err)
	}
	req.Header.Set("Authorization", "Bearer "+authorizationValue(p.cfg.SecretKey))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, protocolError(chapaName, ReasonTransport, 0, nil, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, protocolError(chapaName, ReasonTransport, resp.StatusCode, nil, err)
	}

	status := resp.StatusCode
	success := status >= 200 && status < 300
	envelope, isJSON := decodeChapaEnvelope(resp.Header.Get("Content-Type"), body)

	switch {
	case !success && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		gwErr := configurationError(chapaName, "mobile money gateway rejected the configured credentials")
		gwErr.HTTPStatus = status
		return nil, gwErr
	case !success && isJSON:
		return nil, rejectionError(chapaName, chapaMessage(envelope.Message), status, body)
	case !success:
		return nil, protocolError(chapaName, ReasonNonJSONBody, status, body, nil)
	case !isJSON:
		salvaged := embeddedCheckoutURL.FindString(string(body))
		if salvaged == "" {
			return nil, protocolError(chapaName, ReasonNonJSONBody, status, body, nil)
		}
		if isAnomalousCheckoutURL(salvaged) {
			return nil, protocolError(chapaName, ReasonAnomalousCheckoutURL, status, body, nil)
		}
		logger.WithField("status", status).Warn("salvaged checkout url from non-JSON gateway response")
		return &InitializeOutput{CheckoutURL: salvaged, Salvaged: true}, nil
	case !strings.EqualFold(strings.TrimSpace(envelope.Status), "success"):
		return nil, rejectionError(chapaName, chapaMessage(envelope.Message), status, body)
	}

	var data struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if len(envelope.Data) > 0 && !bytes.Equal(bytes.TrimSpace(envelope.Data), []byte("null")) {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, protocolError(chapaName, ReasonUnexpectedShape, status, body, err)
		}
	}

	checkoutURL := strings.TrimSpace(data.CheckoutURL)
	if checkoutURL == "" {
		return nil, protocolError(chapaName, ReasonEmptyCheckoutURL, status, body, nil)
	}
	if isAnomalousCheckoutURL(checkoutURL) {
		return nil, protocolError(chapaName, ReasonAnomalousCheckoutURL, status, body, nil)
	}

	return &InitializeOutput{CheckoutURL: checkoutURL}, nil
}

// decodeChapaEnvelope reports whether body is a JSON object, judged by the declared media type
// or, when the gateway mislabels it, by the body itself.
func decodeChapaEnvelope(contentType string, body []byte) (*chapaEnvelope, bool) {
	trimmed := bytes.TrimSpace(body)
	mediaType, _, _ := mime.ParseMediaType(contentType)
	declaredJSON := mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
	if !declaredJSON && !bytes.HasPrefix(trimmed, []byte("{")) {
		return nil, false
	}

	envelope := &chapaEnvelope{}
	if err := json.Unmarshal(trimmed, envelope); err != nil {
		return nil, false
	}
	return envelope, true
}

// chapaMessage flattens the gateway message, which is either a string or an object of
// field errors.
func chapaMessage(raw json.RawMessage) string {
	const fallback = "mobile money gateway rejected the request"
	if len(raw) == 0 {
		return fallback
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text = strings.TrimSpace(text); text != "" {
			return text
		}
		return fallback
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return fallback
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+flattenValue(fields[k]))
	}
	return strings.Join(parts, "; ")
}

func flattenValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, flattenValue(item))
		}
		return strings.Join(items, ", ")
	case nil:
		return ""
	default:
		encoded, _ := json.Marshal(t)
		return string(encoded)
	}
}

func authorizationValue(secret string) string {
	return strings.TrimSpace(bearerPrefix.ReplaceAllString(strings.TrimSpace(secret), ""))
}

func isAnomalousCheckoutURL(checkoutURL string) bool {
	lower := strings.ToLower(checkoutURL)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
}

// customizationText keeps the characters the gateway accepts in customization fields.
func customizationText(value string, max int) string {
	value = strings.Join(strings.Fields(customizationChars.ReplaceAllString(value, " ")), " ")
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max]))
}
