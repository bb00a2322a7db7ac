package cli

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/offsync/internal/client/client"
	"github.com/dmitrijs2005/offsync/internal/client/config"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/offsync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/offsync/internal/client/services"
	"github.com/dmitrijs2005/offsync/internal/logging"
)

type Mode string

const (
	ModeUnknown Mode = ""
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	client  client.Client
	devices *services.DeviceService
	outbox  *services.OutboxService
	out     *printer
	Mode    Mode
}

// Opener builds the App a command runs against.
type Opener func(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error)

// NewApp opens the outbox database and connects to the server.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, c.OutboxDSN)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	meta := metadata.NewSQLiteRepository(db)
	apiClient, err := client.NewGRPCClient(c.ServerEndpointAddr, c.RequestTimeout, services.PersistToken(meta, logger))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a, err := newApp(ctx, c, db, apiClient, logger)
	if err != nil {
		_ = apiClient.Close()
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func newApp(ctx context.Context, c *config.Config, db *sql.DB, cl client.Client, logger logging.Logger) (*App, error) {
	meta := metadata.NewSQLiteRepository(db)
	ob := outbox.NewSQLiteRepository(db)

	a := &App{
		config:  c,
		logger:  logger,
		db:      db,
		client:  cl,
		devices: services.NewDeviceService(cl, meta, ob, logger),
		outbox:  services.NewOutboxService(cl, ob, meta, logger),
	}

	if err := a.devices.Restore(ctx); err != nil && !errors.Is(err, client.ErrNotRegistered) {
		return nil, err
	}
	return a, nil
}

func (a *App) Close() error {
	return errors.Join(a.client.Close(), a.db.Close())
}

func (a *App) requireDevice() (string, error) {
	id := a.client.DeviceID()
	if id == "" {
		return "", client.ErrNotRegistered
	}
	return id, nil
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		a.logger.Info(ctx, "switched mode", "mode", mode)
	}
}

// syncOnce checks the server and, when it answers, runs a full sync.
func (a *App) syncOnce(ctx context.Context, batchSize int) (*services.SyncReport, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	err := a.client.Ping(pingCtx)
	cancel()
	if err != nil {
		a.setMode(ctx, ModeOffline)
		return nil, err
	}
	a.setMode(ctx, ModeOnline)

	report, err := a.outbox.Sync(ctx, batchSize)
	if errors.Is(err, client.ErrUnavailable) {
		a.setMode(ctx, ModeOffline)
	}
	return report, err
}

// Watch syncs every interval until ctx is done. Each attempt is reported
// through report.
func (a *App) Watch(ctx context.Context, interval time.Duration, batchSize int, report func(*services.SyncReport, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r, err := a.syncOnce(ctx, batchSize)
		if err != nil {
			a.logger.Warn(ctx, "sync attempt failed", "mode", a.Mode, "error", err)
		}
		report(r, err)

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
