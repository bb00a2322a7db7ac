package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/audit"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/cache"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/conflicts"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/devices"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/queue"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a connection or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Devices(db dbx.DBTX) devices.Repository
	Queue(db dbx.DBTX) queue.Repository
	Conflicts(db dbx.DBTX) conflicts.Repository
	Cache(db dbx.DBTX) cache.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Audit(db dbx.DBTX) audit.Repository
}
