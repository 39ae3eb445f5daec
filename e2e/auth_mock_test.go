//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultCheckoutCallerAPIKey   = "checkout-caller-key"
	defaultCheckoutNoAccessAPIKey = "checkout-no-access-key"
	defaultCheckoutAppAPIKey      = "checkout-app-api-key"
	checkoutAuthMockAddr          = "0.0.0.0:38085"
)

func checkoutCallerAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("CHECKOUT_CALLER_API_KEY")); value != "" {
		return value
	}
	return defaultCheckoutCallerAPIKey
}

func checkoutNoAccessAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("CHECKOUT_NO_ACCESS_API_KEY")); value != "" {
		return value
	}
	return defaultCheckoutNoAccessAPIKey
}

func checkoutAppAPIKey() string {
	if value := strings.TrimSpace(os.Getenv("CHECKOUT_APP_API_KEY")); value != "" {
		return value
	}
	return defaultCheckoutAppAPIKey
}

type checkoutAuthGRPCServer struct {
	authpb.UnimplementedAuthServiceServer
}

func (s *checkoutAuthGRPCServer) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if incomingCheckoutAPIKey(ctx) != checkoutAppAPIKey() {
		return nil, status.Error(codes.Unauthenticated, "unauthorized caller")
	}

	apiKey := strings.TrimSpace(req.GetApiKey())
	switch apiKey {
	case checkoutCallerAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "school-portal",
			AllowedAccess: []string{"checkout-service", "students-service"},
		}, nil
	case checkoutNoAccessAPIKey():
		return &authpb.ValidateInternalAccessResponse{
			ServiceName:   "school-portal",
			AllowedAccess: []string{"students-service"},
		}, nil
	default:
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}
}

func incomingCheckoutAPIKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("x-api-key")
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func TestMain(m *testing.M) {
	if os.Getenv("CHECKOUT_CALLER_API_KEY") == "" {
		_ = os.Setenv("CHECKOUT_CALLER_API_KEY", defaultCheckoutCallerAPIKey)
	}
	if os.Getenv("CHECKOUT_NO_ACCESS_API_KEY") == "" {
		_ = os.Setenv("CHECKOUT_NO_ACCESS_API_KEY", defaultCheckoutNoAccessAPIKey)
	}
	if os.Getenv("CHECKOUT_APP_API_KEY") == "" {
		_ = os.Setenv("CHECKOUT_APP_API_KEY", defaultCheckoutAppAPIKey)
	}

	listener, err := net.Listen("tcp", checkoutAuthMockAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start checkout auth grpc mock: %v\n", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	authpb.RegisterAuthServiceServer(grpcServer, &checkoutAuthGRPCServer{})

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	exitCode := m.Run()

	grpcServer.GracefulStop()
	_ = listener.Close()

	os.Exit(exitCode)
}
