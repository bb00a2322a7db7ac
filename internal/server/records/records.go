// Package records is the boundary to the business tables being synchronized.
// The sync engine only reads, upserts, merges and soft-deletes rows through
// Repository; the Registry maps table names to repository factories.
package records

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
)

// Record is a business row as seen by the sync engine. UpdatedAt is the
// server-side watermark compared against client watermarks.
type Record struct {
	ID        string
	Data      map[string]any
	UpdatedAt time.Time
	IsActive  bool
}

// Repository is the generic accessor for one business table.
// Get returns common.ErrorNotFound for unknown ids.
type Repository interface {
	Get(ctx context.Context, id string) (*Record, error)
	Upsert(ctx context.Context, id string, data map[string]any, at time.Time) (*Record, error)
	Merge(ctx context.Context, id string, patch map[string]any, at time.Time) (*Record, error)
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string, at time.Time) error
}

// Factory binds a table repository to a connection or transaction.
type Factory func(db dbx.DBTX) Repository

// Registry resolves table names to repositories.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]Factory)}
}

// Register adds or replaces the factory for table.
func (r *Registry) Register(table string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tables[table] = f
}

func (r *Registry) Has(table string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[table]
	return ok
}

// Resolve returns the repository for table bound to db, or
// common.ErrUnknownTable.
func (r *Registry) Resolve(table string, db dbx.DBTX) (Repository, error) {
	r.mu.RLock()
	f, ok := r.tables[table]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownTable, table)
	}
	return f(db), nil
}

// Tables lists registered table names in lexical order.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tables))
	for name := range r.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
