package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/outbox"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	deviceID, externalID, token string

	registerResp *api.RegisterDeviceResponse
	registerErr  error
	pingErr      error

	// enqueueErrs is consumed one error per call; nil entries succeed.
	enqueueErrs []error
	enqueued    []*api.EnqueueOperationRequest

	roundResp *api.RunSyncRoundResponse
	roundErr  error
	rounds    []*api.RunSyncRoundRequest
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { return nil }
func (f *fakeClient) Register(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	f.SetSession(f.registerResp.Device.ID, f.registerResp.Device.ExternalID, f.registerResp.AccessToken)
	return f.registerResp, nil
}
func (f *fakeClient) SetSession(deviceID, externalID, accessToken string) {
	f.deviceID, f.externalID, f.token = deviceID, externalID, accessToken
}
func (f *fakeClient) DeviceID() string               { return f.deviceID }
func (f *fakeClient) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeClient) Enqueue(ctx context.Context, req *api.EnqueueOperationRequest) (string, error) {
	var err error
	if len(f.enqueueErrs) > 0 {
		err, f.enqueueErrs = f.enqueueErrs[0], f.enqueueErrs[1:]
	}
	if err != nil {
		return "", err
	}
	f.enqueued = append(f.enqueued, req)
	return "srv-" + req.RecordID, nil
}
func (f *fakeClient) RunSyncRound(ctx context.Context, req *api.RunSyncRoundRequest) (*api.RunSyncRoundResponse, error) {
	f.rounds = append(f.rounds, req)
	return f.roundResp, f.roundErr
}
func (f *fakeClient) ResolveConflict(ctx context.Context, req *api.ResolveConflictRequest) (*api.Conflict, error) {
	return nil, nil
}
func (f *fakeClient) ListConflicts(ctx context.Context, req *api.ListConflictsRequest) ([]api.Conflict, error) {
	return nil, nil
}
func (f *fakeClient) ListQueueItems(ctx context.Context, req *api.ListQueueItemsRequest) ([]api.QueueItem, error) {
	return nil, nil
}
func (f *fakeClient) ListSessions(ctx context.Context, req *api.ListSessionsRequest) ([]api.Session, error) {
	return nil, nil
}

type harness struct {
	db     *sql.DB
	meta   *metadata.SQLiteRepository
	outbox *outbox.SQLiteRepository
	client *fakeClient
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &harness{
		db:     db,
		meta:   metadata.NewSQLiteRepository(db),
		outbox: outbox.NewSQLiteRepository(db),
		client: &fakeClient{},
	}
}
