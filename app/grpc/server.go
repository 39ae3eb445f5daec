package grpc

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/vibast-solutions/ms-go-checkout/app/baseurl"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	checkoutService *service.CheckoutService
}

func NewServer(checkoutService *service.CheckoutService) *Server {
	return &Server{checkoutService: checkoutService}
}

type listCheckoutsPayload struct {
	StudentId uint64 `json:"studentId"`
	Status    string `json:"status"`
	Provider  string `json:"provider"`
	Limit     int32  `json:"limit"`
	Offset    int32  `json:"offset"`
}

func (s *Server) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(&types.HealthResponse{Status: "ok"})
}

func (s *Server) CreateCheckout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	l := loggerWithContext(ctx)

	req := &types.CreateCheckoutRequest{}
	if err := fromStruct(in, req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request body")
	}
	req.Provider = strings.TrimSpace(req.Provider)
	req.ChatId = strings.TrimSpace(req.ChatId)
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	req.ReturnUrl = strings.TrimSpace(req.ReturnUrl)
	req.CallbackUrl = strings.TrimSpace(req.CallbackUrl)
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	req.Origin = originFromMetadata(ctx)

	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Create checkout validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.checkoutService.CreateCheckout(ctx, req)
	if err != nil {
		return nil, statusFromError(ctx, err, "Create checkout failed")
	}

	return toStruct(&types.CreateCheckoutResponse{
		Success:     true,
		TxRef:       result.TxRef,
		CheckoutUrl: result.CheckoutURL,
		Checkout:    mapper.CheckoutToResponse(result.Attempt),
	})
}

func (s *Server) GetCheckout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := &types.GetCheckoutRequest{}
	if err := fromStruct(in, req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}
	req.TxRef = strings.TrimSpace(req.TxRef)
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.checkoutService.GetCheckout(ctx, req.GetTxRef())
	if err != nil {
		return nil, statusFromError(ctx, err, "Get checkout failed")
	}

	return toStruct(&types.CheckoutEnvelopeResponse{Checkout: mapper.CheckoutToResponse(item)})
}

func (s *Server) ListCheckouts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	payload := &listCheckoutsPayload{}
	if err := fromStruct(in, payload); err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid request")
	}

	req := &types.ListCheckoutsRequest{
		StudentId: payload.StudentId,
		Limit:     payload.Limit,
		Offset:    payload.Offset,
	}
	if raw := strings.ToLower(strings.TrimSpace(payload.Status)); raw != "" {
		code, ok := entity.ParseCheckoutStatus(raw)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "invalid status")
		}
		req.HasStatus = true
		req.Status = code
	}
	if raw := strings.TrimSpace(payload.Provider); raw != "" {
		code, ok := entity.ParseProvider(raw)
		if !ok {
			return nil, status.Error(codes.InvalidArgument, "invalid provider")
		}
		req.Provider = code
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.checkoutService.ListCheckouts(ctx, req)
	if err != nil {
		return nil, statusFromError(ctx, err, "List checkouts failed")
	}

	return toStruct(&types.ListCheckoutsResponse{Checkouts: mapper.CheckoutsToResponse(items)})
}

func originFromMetadata(ctx context.Context) baseurl.Request {
	return baseurl.Request{
		ForwardedHost:  firstMetadataValue(ctx, "x-forwarded-host"),
		ForwardedProto: firstMetadataValue(ctx, "x-forwarded-proto"),
		Referer:        firstMetadataValue(ctx, "referer"),
		Host:           firstMetadataValue(ctx, ":authority"),
		Scheme:         "http",
	}
}

func statusFromError(ctx context.Context, err error, logMessage string) error {
	checkoutErr := service.AsCheckoutError(err)
	code := CodeForCheckoutError(checkoutErr.Code)
	if code == codes.Internal || code == codes.Unavailable {
		loggerWithContext(ctx).WithError(err).WithField("code", checkoutErr.Code).Error(logMessage)
	}

	trailer := metadata.Pairs("x-error-code", checkoutErr.Code)
	if checkoutErr.TxRef != "" {
		trailer.Append("x-tx-ref", checkoutErr.TxRef)
	}
	if checkoutErr.RetryAfter > 0 {
		trailer.Append("retry-after", strconv.FormatInt(int64(math.Ceil(checkoutErr.RetryAfter.Seconds())), 10))
	}
	for key, value := range checkoutErr.Details {
		trailer.Append("x-error-"+strings.ReplaceAll(key, "_", "-"), value)
	}
	_ = grpc.SetTrailer(ctx, trailer)

	return status.Error(code, checkoutErr.Message)
}

func CodeForCheckoutError(code string) codes.Code {
	switch code {
	case service.CodeValidation:
		return codes.InvalidArgument
	case service.CodeSubjectNotFound, service.CodeCheckoutNotFound:
		return codes.NotFound
	case service.CodeAmbiguousSubject, service.CodeUnsupportedCurrency:
		return codes.FailedPrecondition
	case service.CodeDuplicatePayment:
		return codes.AlreadyExists
	case service.CodeRateLimitExceeded:
		return codes.ResourceExhausted
	case service.CodeGatewayConfiguration, service.CodeGatewayProtocol:
		return codes.Unavailable
	case service.CodeGatewayRejection:
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func fromStruct(in *structpb.Struct, out interface{}) error {
	if in == nil {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return out, nil
}
