package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type fakeClient struct {
	deviceID, externalID, token string

	pingErr    error
	enqueueErr error
	enqueued   []*api.EnqueueOperationRequest

	lastRound     *api.RunSyncRoundRequest
	lastConflicts *api.ListConflictsRequest
	lastResolve   *api.ResolveConflictRequest
	lastQueue     *api.ListQueueItemsRequest
	lastSessions  *api.ListSessionsRequest
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Close() error { return nil }
func (f *fakeClient) Register(ctx context.Context, req *api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {
	resp := &api.RegisterDeviceResponse{
		Device:      api.Device{ID: "dev-" + req.ExternalID, ExternalID: req.ExternalID, Name: req.Name, Status: "available"},
		AccessToken: "tok",
	}
	f.SetSession(resp.Device.ID, req.ExternalID, resp.AccessToken)
	return resp, nil
}
func (f *fakeClient) SetSession(deviceID, externalID, accessToken string) {
	f.deviceID, f.externalID, f.token = deviceID, externalID, accessToken
}
func (f *fakeClient) DeviceID() string               { return f.deviceID }
func (f *fakeClient) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeClient) Enqueue(ctx context.Context, req *api.EnqueueOperationRequest) (string, error) {
	if f.enqueueErr != nil {
		return "", f.enqueueErr
	}
	f.enqueued = append(f.enqueued, req)
	return "q-" + req.RecordID, nil
}
func (f *fakeClient) RunSyncRound(ctx context.Context, req *api.RunSyncRoundRequest) (*api.RunSyncRoundResponse, error) {
	f.lastRound = req
	return &api.RunSyncRoundResponse{
		Session:     api.Session{ID: "s-1", Status: "completed"},
		Counts:      api.OutcomeCounts{Completed: len(f.enqueued)},
		SuccessRate: 1,
	}, nil
}
func (f *fakeClient) ResolveConflict(ctx context.Context, req *api.ResolveConflictRequest) (*api.Conflict, error) {
	f.lastResolve = req
	return &api.Conflict{ID: req.ConflictID, Strategy: req.Strategy, Resolved: true}, nil
}
func (f *fakeClient) ListConflicts(ctx context.Context, req *api.ListConflictsRequest) ([]api.Conflict, error) {
	f.lastConflicts = req
	return []api.Conflict{{ID: "c-1", TableName: "orders", RecordID: "o-1", Type: "update_update"}}, nil
}
func (f *fakeClient) ListQueueItems(ctx context.Context, req *api.ListQueueItemsRequest) ([]api.QueueItem, error) {
	f.lastQueue = req
	return []api.QueueItem{{ID: "q-1", Seq: 1, Operation: "UPDATE", TableName: "orders", Status: "pending", MaxRetries: 3}}, nil
}
func (f *fakeClient) ListSessions(ctx context.Context, req *api.ListSessionsRequest) ([]api.Session, error) {
	f.lastSessions = req
	return []api.Session{{ID: "s-1", Type: "manual", Status: "completed", SuccessRate: 1}}, nil
}

type cliHarness struct {
	t      *testing.T
	client *fakeClient
	outbox string
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{t: t, client: &fakeClient{}, outbox: filepath.Join(t.TempDir(), "outbox.db")}
}

func (h *cliHarness) open(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.OutboxDSN)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, c, db, h.client, logger)
}

// run executes syncctl with args and returns what it printed.
func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand(h.open)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--outbox", h.outbox}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}
