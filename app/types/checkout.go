package types

import (
	"errors"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout/app/baseurl"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

const (
	maxMonths       = 24
	maxMetadataKeys = 20
	defaultLimit    = 100
	maxLimit        = 500
)

func NewCreateCheckoutRequestFromContext(ctx echo.Context) (*CreateCheckoutRequest, error) {
	var body CreateCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Provider = strings.TrimSpace(body.Provider)
	body.ChatId = strings.TrimSpace(body.ChatId)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.ReturnUrl = strings.TrimSpace(body.ReturnUrl)
	body.CallbackUrl = strings.TrimSpace(body.CallbackUrl)
	body.Mode = strings.ToLower(strings.TrimSpace(body.Mode))
	body.Origin = OriginFromRequest(ctx)

	return &body, nil
}

// OriginFromRequest collects the proxy and browser headers used to build absolute return links.
func OriginFromRequest(ctx echo.Context) baseurl.Request {
	req := ctx.Request()
	scheme := "http"
	if req.TLS != nil {
		scheme = "https"
	}
	return baseurl.Request{
		ForwardedHost:  req.Header.Get("X-Forwarded-Host"),
		ForwardedProto: req.Header.Get(echo.HeaderXForwardedProto),
		Referer:        req.Header.Get("Referer"),
		Host:           req.Host,
		Scheme:         scheme,
	}
}

func (r *CreateCheckoutRequest) Validate() error {
	if strings.TrimSpace(r.GetProvider()) == "" {
		return errors.New("provider is required")
	}
	if _, ok := entity.ParseProvider(r.GetProvider()); !ok {
		return errors.New("provider must be card or mobileMoney")
	}
	if r.GetStudentId() == 0 && strings.TrimSpace(r.GetChatId()) == "" {
		return errors.New("studentId or chatId is required")
	}
	if amount := r.GetAmount(); amount.Valid && !amount.Decimal.IsPositive() {
		return errors.New("amount must be > 0")
	}
	if currency := strings.TrimSpace(r.GetCurrency()); currency != "" && len(currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if _, ok := entity.ParseIntent(r.GetMode()); !ok {
		return errors.New("mode must be tuition or deposit")
	}
	if len(r.GetMonths()) > maxMonths {
		return errors.New("months must contain at most 24 entries")
	}
	if len(r.GetMetadata()) > maxMetadataKeys {
		return errors.New("metadata must contain at most 20 keys")
	}
	if raw := r.GetReturnUrl(); raw != "" && !strings.HasPrefix(raw, "/") && !baseurl.IsAbsoluteHTTPURL(raw) {
		return errors.New("returnUrl must be a path or an absolute http(s) url")
	}
	if raw := r.GetCallbackUrl(); raw != "" && !strings.HasPrefix(raw, "/") && !baseurl.IsAbsoluteHTTPURL(raw) {
		return errors.New("callbackUrl must be a path or an absolute http(s) url")
	}
	return nil
}

func NewGetCheckoutRequestFromContext(ctx echo.Context) (*GetCheckoutRequest, error) {
	return &GetCheckoutRequest{TxRef: strings.TrimSpace(ctx.Param("txRef"))}, nil
}

func (r *GetCheckoutRequest) Validate() error {
	if r.GetTxRef() == "" {
		return errors.New("txRef is required")
	}
	return nil
}

func NewListCheckoutsRequestFromContext(ctx echo.Context) (*ListCheckoutsRequest, error) {
	req := &ListCheckoutsRequest{
		Limit:  defaultLimit,
		Offset: 0,
	}

	if raw := strings.TrimSpace(ctx.QueryParam("student_id")); raw != "" {
		studentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, errors.New("invalid student_id")
		}
		req.StudentId = studentID
	}

	if raw := strings.TrimSpace(strings.ToLower(ctx.QueryParam("status"))); raw != "" {
		status, ok := entity.ParseCheckoutStatus(raw)
		if !ok {
			n, err := strconv.ParseInt(raw, 10, 32)
			if err != nil {
				return nil, errors.New("invalid status")
			}
			status = int32(n)
		}
		req.HasStatus = true
		req.Status = status
	}

	if raw := strings.TrimSpace(ctx.QueryParam("provider")); raw != "" {
		code, ok := entity.ParseProvider(raw)
		if !ok {
			n, err := strconv.ParseInt(raw, 10, 32)
			if err != nil {
				return nil, errors.New("invalid provider")
			}
			code = int32(n)
		}
		req.Provider = code
	}

	if raw := strings.TrimSpace(ctx.QueryParam("limit")); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if raw := strings.TrimSpace(ctx.QueryParam("offset")); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

func (r *ListCheckoutsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultLimit
	}
	if r.GetLimit() <= 0 || r.GetLimit() > maxLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}
	if r.GetHasStatus() && entity.CheckoutStatusName(r.GetStatus()) == "unknown" {
		return errors.New("invalid status")
	}
	if r.GetProvider() != 0 && entity.ProviderName(r.GetProvider()) == "unknown" {
		return errors.New("invalid provider")
	}
	return nil
}
