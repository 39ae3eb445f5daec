package controller

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) CreateCheckout(ctx echo.Context) error {
	req, err := types.NewCreateCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeValidationError(ctx, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeValidationError(ctx, err.Error())
	}

	result, err := c.checkoutService.CreateCheckout(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "Create checkout failed")
	}

	factory.LoggerWithContext(c.logger, ctx).WithFields(logrus.Fields{
		"tx_ref":   result.TxRef,
		"provider": req.GetProvider(),
	}).Info("Checkout created")

	return ctx.JSON(http.StatusCreated, &types.CreateCheckoutResponse{
		Success:     true,
		TxRef:       result.TxRef,
		CheckoutUrl: result.CheckoutURL,
		Checkout:    mapper.CheckoutToResponse(result.Attempt),
	})
}

func (c *CheckoutController) GetCheckout(ctx echo.Context) error {
	req, err := types.NewGetCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeValidationError(ctx, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeValidationError(ctx, err.Error())
	}

	item, err := c.checkoutService.GetCheckout(ctx.Request().Context(), req.GetTxRef())
	if err != nil {
		return c.writeServiceError(ctx, err, "Get checkout failed")
	}

	return ctx.JSON(http.StatusOK, &types.CheckoutEnvelopeResponse{Checkout: mapper.CheckoutToResponse(item)})
}

func (c *CheckoutController) ListCheckouts(ctx echo.Context) error {
	req, err := types.NewListCheckoutsRequestFromContext(ctx)
	if err != nil {
		return c.writeValidationError(ctx, err.Error())
	}
	if err := req.Validate(); err != nil {
		return c.writeValidationError(ctx, err.Error())
	}

	items, err := c.checkoutService.ListCheckouts(ctx.Request().Context(), req)
	if err != nil {
		return c.writeServiceError(ctx, err, "List checkouts failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListCheckoutsResponse{Checkouts: mapper.CheckoutsToResponse(items)})
}

func (c *CheckoutController) writeValidationError(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{
		Error: message,
		Code:  service.CodeValidation,
	})
}

func (c *CheckoutController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	checkoutErr := service.AsCheckoutError(err)
	status := HTTPStatusForCode(checkoutErr.Code)
	if status >= http.StatusInternalServerError {
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("code", checkoutErr.Code).Error(logMessage)
	}

	resp := &types.ErrorResponse{
		Error:   checkoutErr.Message,
		Code:    checkoutErr.Code,
		TxRef:   checkoutErr.TxRef,
		Details: checkoutErr.Details,
	}
	if checkoutErr.RetryAfter > 0 {
		seconds := int64(math.Ceil(checkoutErr.RetryAfter.Seconds()))
		resp.RetryAfterSeconds = seconds
		ctx.Response().Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}

	return ctx.JSON(status, resp)
}

func HTTPStatusForCode(code string) int {
	switch code {
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeSubjectNotFound, service.CodeCheckoutNotFound:
		return http.StatusNotFound
	case service.CodeAmbiguousSubject, service.CodeDuplicatePayment:
		return http.StatusConflict
	case service.CodeUnsupportedCurrency, service.CodeGatewayRejection:
		return http.StatusUnprocessableEntity
	case service.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case service.CodeGatewayConfiguration:
		return http.StatusServiceUnavailable
	case service.CodeGatewayProtocol:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
