package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokenListener is told about every token the client obtains, so it can be
// persisted.
type TokenListener func(deviceID, accessToken string)

type GRPCClient struct {
	endpointURL string
	timeout     time.Duration
	conn        *grpc.ClientConn
	client      api.SyncServiceClient
	onToken     TokenListener

	mu          sync.Mutex
	deviceID    string
	externalID  string
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	err := invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
	if err == nil || method == api.RegisterDeviceMethod {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	s.mu.Lock()
	externalID := s.externalID
	s.mu.Unlock()
	if externalID == "" {
		return err
	}

	// registration is idempotent per external id and hands out a fresh token
	if _, rerr := s.Register(ctx, &api.RegisterDeviceRequest{ExternalID: externalID}); rerr != nil {
		return err
	}

	return invoker(withAccessToken(ctx, s.token()), method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL string, timeout time.Duration, onToken TokenListener) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, timeout: timeout, onToken: onToken}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	conn, err := grpc.NewClient(s.endpointURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(api.CodecName)),
	)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewSyncServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) SetSession(deviceID, externalID, accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID, s.externalID, s.accessToken = deviceID, externalID, accessToken
}

func (s *GRPCClient) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

func (s *GRPCClient) Register(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.RegisterDevice(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetSession(resp.Device.ID, resp.Device.ExternalID, resp.AccessToken)
	if s.onToken != nil {
		s.onToken(resp.Device.ID, resp.AccessToken)
	}
	return resp, nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Enqueue(ctx context.Context, req *api.EnqueueOperationRequest) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.EnqueueOperation(ctx, req)
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.ItemID, nil
}

func (s *GRPCClient) RunSyncRound(ctx context.Context, req *api.RunSyncRoundRequest) (*api.RunSyncRoundResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.RunSyncRound(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) ResolveConflict(ctx context.Context, req *api.ResolveConflictRequest) (*api.Conflict, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ResolveConflict(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return &resp.Conflict, nil
}

func (s *GRPCClient) ListConflicts(ctx context.Context, req *api.ListConflictsRequest) ([]api.Conflict, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListConflicts(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Conflicts, nil
}

func (s *GRPCClient) ListQueueItems(ctx context.Context, req *api.ListQueueItemsRequest) ([]api.QueueItem, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListQueueItems(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Items, nil
}

func (s *GRPCClient) ListSessions(ctx context.Context, req *api.ListSessionsRequest) ([]api.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListSessions(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Sessions, nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.NotFound, codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
