package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "offsync.v1.SyncService"

const (
	RegisterDeviceMethod   = "/" + ServiceName + "/RegisterDevice"
	EnqueueOperationMethod = "/" + ServiceName + "/EnqueueOperation"
	RunSyncRoundMethod     = "/" + ServiceName + "/RunSyncRound"
	ResolveConflictMethod  = "/" + ServiceName + "/ResolveConflict"
	ListConflictsMethod    = "/" + ServiceName + "/ListConflicts"
	ListQueueItemsMethod   = "/" + ServiceName + "/ListQueueItems"
	ListSessionsMethod     = "/" + ServiceName + "/ListSessions"
	PingMethod             = "/" + ServiceName + "/Ping"
)

// SyncServiceServer is implemented by the sync server.
type SyncServiceServer interface {
	RegisterDevice(context.Context, *RegisterDeviceRequest) (*RegisterDeviceResponse, error)
	EnqueueOperation(context.Context, *EnqueueOperationRequest) (*EnqueueOperationResponse, error)
	RunSyncRound(context.Context, *RunSyncRoundRequest) (*RunSyncRoundResponse, error)
	ResolveConflict(context.Context, *ResolveConflictRequest) (*ResolveConflictResponse, error)
	ListConflicts(context.Context, *ListConflictsRequest) (*ListConflictsResponse, error)
	ListQueueItems(context.Context, *ListQueueItemsRequest) (*ListQueueItemsResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
}

// UnimplementedSyncServiceServer answers every method with
// codes.Unimplemented. Embed it to stay forward compatible.
type UnimplementedSyncServiceServer struct{}

func (UnimplementedSyncServiceServer) RegisterDevice(context.Context, *RegisterDeviceRequest) (*RegisterDeviceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RegisterDevice not implemented")
}
func (UnimplementedSyncServiceServer) EnqueueOperation(context.Context, *EnqueueOperationRequest) (*EnqueueOperationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method EnqueueOperation not implemented")
}
func (UnimplementedSyncServiceServer) RunSyncRound(context.Context, *RunSyncRoundRequest) (*RunSyncRoundResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RunSyncRound not implemented")
}
func (UnimplementedSyncServiceServer) ResolveConflict(context.Context, *ResolveConflictRequest) (*ResolveConflictResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ResolveConflict not implemented")
}
func (UnimplementedSyncServiceServer) ListConflicts(context.Context, *ListConflictsRequest) (*ListConflictsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListConflicts not implemented")
}
func (UnimplementedSyncServiceServer) ListQueueItems(context.Context, *ListQueueItemsRequest) (*ListQueueItemsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListQueueItems not implemented")
}
func (UnimplementedSyncServiceServer) ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
}
func (UnimplementedSyncServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

// unary adapts a typed server method to a grpc.MethodHandler.
func unary[Req, Resp any](fullMethod string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SyncServiceDesc describes offsync.v1.SyncService for grpc.Server.
var SyncServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RegisterDevice", Handler: unary(RegisterDeviceMethod, SyncServiceServer.RegisterDevice)},
		{MethodName: "EnqueueOperation", Handler: unary(EnqueueOperationMethod, SyncServiceServer.EnqueueOperation)},
		{MethodName: "RunSyncRound", Handler: unary(RunSyncRoundMethod, SyncServiceServer.RunSyncRound)},
		{MethodName: "ResolveConflict", Handler: unary(ResolveConflictMethod, SyncServiceServer.ResolveConflict)},
		{MethodName: "ListConflicts", Handler: unary(ListConflictsMethod, SyncServiceServer.ListConflicts)},
		{MethodName: "ListQueueItems", Handler: unary(ListQueueItemsMethod, SyncServiceServer.ListQueueItems)},
		{MethodName: "ListSessions", Handler: unary(ListSessionsMethod, SyncServiceServer.ListSessions)},
		{MethodName: "Ping", Handler: unary(PingMethod, SyncServiceServer.Ping)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "offsync/v1/sync",
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncServiceDesc, srv)
}
