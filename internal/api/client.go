package api

import (
	"context"

	"google.golang.org/grpc"
)

// SyncServiceClient is the client side of offsync.v1.SyncService. Every call
// is sent with the JSON content subtype.
type SyncServiceClient interface {
	RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*RegisterDeviceResponse, error)
	EnqueueOperation(ctx context.Context, in *EnqueueOperationRequest, opts ...grpc.CallOption) (*EnqueueOperationResponse, error)
	RunSyncRound(ctx context.Context, in *RunSyncRoundRequest, opts ...grpc.CallOption) (*RunSyncRoundResponse, error)
	ResolveConflict(ctx context.Context, in *ResolveConflictRequest, opts ...grpc.CallOption) (*ResolveConflictResponse, error)
	ListConflicts(ctx context.Context, in *ListConflictsRequest, opts ...grpc.CallOption) (*ListConflictsResponse, error)
	ListQueueItems(ctx context.Context, in *ListQueueItemsRequest, opts ...grpc.CallOption) (*ListQueueItemsResponse, error)
	ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) RegisterDevice(ctx context.Context, in *RegisterDeviceRequest, opts ...grpc.CallOption) (*RegisterDeviceResponse, error) {
	return invoke[RegisterDeviceResponse](ctx, c.cc, RegisterDeviceMethod, in, opts)
}

func (c *syncServiceClient) EnqueueOperation(ctx context.Context, in *EnqueueOperationRequest, opts ...grpc.CallOption) (*EnqueueOperationResponse, error) {
	return invoke[EnqueueOperationResponse](ctx, c.cc, EnqueueOperationMethod, in, opts)
}

func (c *syncServiceClient) RunSyncRound(ctx context.Context, in *RunSyncRoundRequest, opts ...grpc.CallOption) (*RunSyncRoundResponse, error) {
	return invoke[RunSyncRoundResponse](ctx, c.cc, RunSyncRoundMethod, in, opts)
}

func (c *syncServiceClient) ResolveConflict(ctx context.Context, in *ResolveConflictRequest, opts ...grpc.CallOption) (*ResolveConflictResponse, error) {
	return invoke[ResolveConflictResponse](ctx, c.cc, ResolveConflictMethod, in, opts)
}

func (c *syncServiceClient) ListConflicts(ctx context.Context, in *ListConflictsRequest, opts ...grpc.CallOption) (*ListConflictsResponse, error) {
	return invoke[ListConflictsResponse](ctx, c.cc, ListConflictsMethod, in, opts)
}

func (c *syncServiceClient) ListQueueItems(ctx context.Context, in *ListQueueItemsRequest, opts ...grpc.CallOption) (*ListQueueItemsResponse, error) {
	return invoke[ListQueueItemsResponse](ctx, c.cc, ListQueueItemsMethod, in, opts)
}

func (c *syncServiceClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, ListSessionsMethod, in, opts)
}

func (c *syncServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, PingMethod, in, opts)
}
