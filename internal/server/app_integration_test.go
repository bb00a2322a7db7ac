//go:build integration

// The integration suite needs Docker:
//
//	go test -tags=integration ./internal/server/...
package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/offsync/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "offsync",
				"POSTGRES_PASSWORD": "offsync",
				"POSTGRES_DB":       "offsync",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://offsync:offsync@%s:%s/offsync?sslmode=disable", host, port.Port())
}

func newIntegrationApp(ctx context.Context, t *testing.T) *App {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabaseDSN = startPostgres(ctx, t)
	cfg.LogLevel = "error"
	cfg.SyncedTables = []string{"orders"}

	app, err := NewApp(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.close(context.Background()) })
	return app
}

func TestIntegration_SyncRound(t *testing.T) {
	ctx := context.Background()
	app := newIntegrationApp(ctx, t)
	orders, err := records.NewPostgresRegistry([]string{"orders"}).Resolve("orders", app.db)
	require.NoError(t, err)

	device, err := app.devices.Register(ctx, "pos-1", models.DeviceAttrs{Name: "till 1"})
	require.NoError(t, err)

	again, err := app.devices.Register(ctx, "pos-1", models.DeviceAttrs{})
	require.NoError(t, err)
	assert.Equal(t, device.ID, again.ID)
	assert.Equal(t, "till 1", again.Name)

	// CREATE is applied without a watermark check
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:  device.ID,
		Operation: models.OpCreate,
		TableName: "orders",
		RecordID:  "o-1",
		Payload:   models.CreatePayload{Fields: map[string]any{"total": 10.0}},
		Priority:  models.PriorityHigh,
	})
	require.NoError(t, err)

	round, err := app.sync.RunRound(ctx, services.RoundRequest{DeviceID: device.ID, Type: models.SessionManual})
	require.NoError(t, err)
	assert.Equal(t, 1, round.Counts.Completed)
	assert.Equal(t, 1.0, round.SuccessRate)
	assert.Equal(t, models.SessionCompleted, round.Session.Status)

	rec, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, rec.Data["total"])

	// an UPDATE without a watermark cannot prove it saw the current row
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:  device.ID,
		Operation: models.OpUpdate,
		TableName: "orders",
		RecordID:  "o-1",
		Payload:   models.UpdatePayload{Fields: map[string]any{"total": 12.0}},
	})
	require.NoError(t, err)

	round, err = app.sync.RunRound(ctx, services.RoundRequest{DeviceID: device.ID, Type: models.SessionManual})
	require.NoError(t, err)
	assert.Equal(t, 1, round.Counts.Conflict)
	require.Len(t, round.UnresolvedConflicts, 1)
	c := round.UnresolvedConflicts[0]
	assert.True(t, c.RequiresManualReview)

	// the record is blocked until the conflict is settled
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:  device.ID,
		Operation: models.OpDelete,
		TableName: "orders",
		RecordID:  "o-1",
		Payload:   models.DeletePayload{},
	})
	require.ErrorIs(t, err, common.ErrRecordHasOpenConflict)

	resolved, err := app.sync.ResolveConflict(ctx, services.ResolveRequest{
		ConflictID: c.ID,
		Strategy:   models.StrategyClientWins,
		ResolvedBy: "manager",
	})
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)

	rec, err = orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 12.0, rec.Data["total"])

	sessions, err := app.sessions.List(ctx, device.ID, 0)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestIntegration_UnknownTableRejected(t *testing.T) {
	ctx := context.Background()
	app := newIntegrationApp(ctx, t)

	device, err := app.devices.Register(ctx, "pos-2", models.DeviceAttrs{})
	require.NoError(t, err)

	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:  device.ID,
		Operation: models.OpDelete,
		TableName: "payroll",
		RecordID:  "p-1",
		Payload:   models.DeletePayload{},
	})
	require.ErrorIs(t, err, common.ErrUnknownTable)
}

func TestIntegration_StartupRecoversInterruptedRound(t *testing.T) {
	ctx := context.Background()
	app := newIntegrationApp(ctx, t)

	device, err := app.devices.Register(ctx, "pos-3", models.DeviceAttrs{})
	require.NoError(t, err)
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID:  device.ID,
		Operation: models.OpCreate,
		TableName: "orders",
		RecordID:  "o-9",
		Payload:   models.CreatePayload{Fields: map[string]any{"total": 1.0}},
		Priority:  models.PriorityCritical,
	})
	require.NoError(t, err)

	// a round that dies after claiming its batch
	session, err := app.sessions.Start(ctx, device.ID, models.SessionManual, "test")
	require.NoError(t, err)
	claimed, err := repomanager.NewPostgresRepositoryManager().Queue(app.db).Claim(ctx, device.ID, 10, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, app.init(ctx))

	items, err := app.queue.List(ctx, device.ID, models.ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.QueueFailed, items[0].Status)
	assert.Equal(t, 1, items[0].RetryCount)

	sessions, err := app.sessions.List(ctx, device.ID, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
	assert.Equal(t, models.SessionFailed, sessions[0].Status)

	d, err := app.devices.Get(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeviceOnline, d.Status)

	// the stranded item is retried and written through to the cache
	round, err := app.sync.RunRound(ctx, services.RoundRequest{DeviceID: device.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, round.Counts.Completed)

	entry, err := app.cache.Get(ctx, device.ID, "orders", "o-9")
	require.NoError(t, err)
	assert.True(t, entry.IsCritical)
	assert.Nil(t, entry.ExpiresAt)
}

func TestIntegration_OpenConflictHoldsLaterWrites(t *testing.T) {
	ctx := context.Background()
	app := newIntegrationApp(ctx, t)
	orders, err := records.NewPostgresRegistry([]string{"orders"}).Resolve("orders", app.db)
	require.NoError(t, err)

	device, err := app.devices.Register(ctx, "pos-4", models.DeviceAttrs{})
	require.NoError(t, err)
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID: device.ID, Operation: models.OpCreate, TableName: "orders", RecordID: "o-5",
		Payload: models.CreatePayload{Fields: map[string]any{"total": 5.0}},
	})
	require.NoError(t, err)
	_, err = app.sync.RunRound(ctx, services.RoundRequest{DeviceID: device.ID})
	require.NoError(t, err)

	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID: device.ID, Operation: models.OpUpdate, TableName: "orders", RecordID: "o-5",
		Payload: models.UpdatePayload{Fields: map[string]any{"total": 6.0}},
	})
	require.NoError(t, err)
	seen := time.Now().UTC().Add(time.Hour)
	_, err = app.queue.Enqueue(ctx, services.EnqueueRequest{
		DeviceID: device.ID, Operation: models.OpUpdate, TableName: "orders", RecordID: "o-5",
		Payload: models.UpdatePayload{Fields: map[string]any{"total": 7.0}}, ClientWatermark: &seen,
	})
	require.NoError(t, err)

	round, err := app.sync.RunRound(ctx, services.RoundRequest{DeviceID: device.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, round.Counts.Conflict)
	assert.Equal(t, 1, round.Counts.Skipped)
	require.Len(t, round.UnresolvedConflicts, 1)

	rec, err := orders.Get(ctx, "o-5")
	require.NoError(t, err)
	assert.Equal(t, 5.0, rec.Data["total"])
}
