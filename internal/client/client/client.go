package client

import (
	"context"

	"github.com/dmitrijs2005/offsync/internal/api"
)

type Client interface {
	Close() error
	Register(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error)
	// SetSession installs credentials restored from local storage.
	SetSession(deviceID, externalID, accessToken string)
	DeviceID() string
	Ping(ctx context.Context) error
	Enqueue(ctx context.Context, req *api.EnqueueOperationRequest) (string, error)
	RunSyncRound(ctx context.Context, req *api.RunSyncRoundRequest) (*api.RunSyncRoundResponse, error)
	ResolveConflict(ctx context.Context, req *api.ResolveConflictRequest) (*api.Conflict, error)
	ListConflicts(ctx context.Context, req *api.ListConflictsRequest) ([]api.Conflict, error)
	ListQueueItems(ctx context.Context, req *api.ListQueueItemsRequest) ([]api.QueueItem, error)
	ListSessions(ctx context.Context, req *api.ListSessionsRequest) ([]api.Session, error)
}
