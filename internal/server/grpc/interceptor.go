package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

// DeviceIDKey holds the authenticated device id in the request context.
const DeviceIDKey ctxKey = "deviceID"

// publicMethods may be called without a token.
var publicMethods = map[string]bool{
	api.RegisterDeviceMethod: true,
	api.PingMethod:           true,
}

func accessTokenFrom(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	public := publicMethods[info.FullMethod]

	accessToken := accessTokenFrom(ctx)
	if len(accessToken) == 0 {
		if public {
			return handler(ctx, req)
		}
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	deviceID, err := auth.GetDeviceIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		// a stale token must not stop a device from registering again
		if public {
			return handler(ctx, req)
		}
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = context.WithValue(ctx, DeviceIDKey, deviceID)

	return handler(ctx, req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "rpc failed", "method", info.FullMethod, "code", status.Code(err).String(), "elapsed", time.Since(start))
		return resp, err
	}
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "elapsed", time.Since(start))
	return resp, nil
}

// authorizedDevice returns the device a request acts on. An empty requested
// id means the caller's own device; any other device is refused.
func authorizedDevice(ctx context.Context, requested string) (string, error) {
	caller, ok := ctx.Value(DeviceIDKey).(string)
	if !ok || caller == "" {
		return "", status.Error(codes.Unauthenticated, "missing device identity")
	}
	if requested != "" && requested != caller {
		return "", status.Error(codes.PermissionDenied, "token does not belong to device "+requested)
	}
	return caller, nil
}
