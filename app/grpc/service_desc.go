package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const checkoutServiceName = "checkout.v1.CheckoutService"

// CheckoutServiceServer carries JSON-shaped google.protobuf.Struct messages so the gRPC surface
// mirrors the HTTP bodies.
type CheckoutServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateCheckout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetCheckout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCheckouts(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterCheckoutServiceServer(registrar grpc.ServiceRegistrar, srv CheckoutServiceServer) {
	registrar.RegisterService(&CheckoutServiceDesc, srv)
}

var CheckoutServiceDesc = grpc.ServiceDesc{
	ServiceName: checkoutServiceName,
	HandlerType: (*CheckoutServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryHandler("Health", CheckoutServiceServer.Health)},
		{MethodName: "CreateCheckout", Handler: unaryHandler("CreateCheckout", CheckoutServiceServer.CreateCheckout)},
		{MethodName: "GetCheckout", Handler: unaryHandler("GetCheckout", CheckoutServiceServer.GetCheckout)},
		{MethodName: "ListCheckouts", Handler: unaryHandler("ListCheckouts", CheckoutServiceServer.ListCheckouts)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkout/v1/checkout.proto",
}

type structMethod func(CheckoutServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method structMethod) grpc.MethodHandler {
	fullMethod := "/" + checkoutServiceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(CheckoutServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(CheckoutServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
