// Package server wires the offsync sync server together: PostgreSQL storage,
// the sync services, the gRPC surface and the cache janitor. It stops
// gracefully on SIGINT, SIGTERM and SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/logging"
	"github.com/dmitrijs2005/offsync/internal/server/archive"
	"github.com/dmitrijs2005/offsync/internal/server/config"
	"github.com/dmitrijs2005/offsync/internal/server/records"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/offsync/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/offsync/internal/server/grpc"
)

const (
	logMaxSizeMB  = 100
	logMaxBackups = 5
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	logSink  io.Closer
	db       *sql.DB
	devices  *services.DeviceService
	queue    *services.QueueService
	cache    *services.CacheService
	sessions *services.SessionService
	sync     *services.SyncService
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, sink := logging.NewJSONLogger(logging.SinkOptions{
		File:       c.LogFile,
		MaxSizeMB:  logMaxSizeMB,
		MaxBackups: logMaxBackups,
		Level:      c.LogLevel,
	})

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app := &App{config: c, logger: logger, logSink: sink, db: db}
	if err := app.init(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	for _, table := range c.SyncedTables {
		if err := records.EnsureTable(ctx, app.db, table); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	registry := records.NewPostgresRegistry(c.SyncedTables)

	archiver, err := newArchiver(ctx, c)
	if err != nil {
		return fmt.Errorf("archive init error: %w", err)
	}

	tx := dbx.NewTransactor(app.db)
	app.devices = services.NewDeviceService(tx, m, c, app.logger)
	app.cache = services.NewCacheService(tx, m, registry, c, app.logger)
	app.queue = services.NewQueueService(tx, m, registry, app.cache, c, app.logger)
	app.sessions = services.NewSessionService(tx, m, app.logger)
	app.sync = services.NewSyncService(tx, m, registry, app.sessions, app.queue, app.cache, archiver, app.logger)

	if err := app.sync.Recover(ctx); err != nil {
		return fmt.Errorf("recovery error: %w", err)
	}

	app.logger.Info(ctx, "storage ready", "synced_tables", registry.Tables())
	return nil
}

func newArchiver(ctx context.Context, c *config.Config) (services.Archiver, error) {
	if c.S3Bucket == "" {
		return archive.Nop{}, nil
	}
	a, err := archive.NewS3Archiver(ctx, c)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (app *App) close(ctx context.Context) {
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "err", err)
	}
	_ = app.logSink.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewgGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.devices, app.queue, app.sync, app.sessions, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		runCacheJanitor(ctx, app.config.CacheSweepInterval, app.cache, app.logger)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	app.close(context.Background())
}
