package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/jackc/pgx/v5"
)

// PostgresTable stores a business table as (id, data jsonb, updated_at,
// is_active). Field-wise merges use jsonb concatenation.
type PostgresTable struct {
	db    dbx.DBTX
	table string
}

// NewPostgresTable binds the table called name. The name is quoted as an
// identifier, never interpolated raw.
func NewPostgresTable(db dbx.DBTX, name string) *PostgresTable {
	return &PostgresTable{db: db, table: pgx.Identifier{name}.Sanitize()}
}

// PostgresFactory returns a Factory for the table called name.
func PostgresFactory(name string) Factory {
	return func(db dbx.DBTX) Repository {
		return NewPostgresTable(db, name)
	}
}

// NewPostgresRegistry registers a PostgresTable for every name.
func NewPostgresRegistry(names []string) *Registry {
	r := NewRegistry()
	for _, n := range names {
		r.Register(n, PostgresFactory(n))
	}
	return r
}

// EnsureTable creates the storage for name if it does not exist.
func EnsureTable(ctx context.Context, db dbx.DBTX, name string) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		data JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`, pgx.Identifier{name}.Sanitize())

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (t *PostgresTable) Get(ctx context.Context, id string) (*Record, error) {
	query := fmt.Sprintf(`SELECT id, data, updated_at, is_active FROM %s WHERE id = $1`, t.table)
	return t.scanOne(t.db.QueryRowContext(ctx, query, id))
}

func (t *PostgresTable) Upsert(ctx context.Context, id string, data map[string]any, at time.Time) (*Record, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s (id, data, updated_at, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING id, data, updated_at, is_active`, t.table)
	return t.scanOne(t.db.QueryRowContext(ctx, query, id, b, at))
}

func (t *PostgresTable) Merge(ctx context.Context, id string, patch map[string]any, at time.Time) (*Record, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("marshal patch: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s (id, data, updated_at, is_active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET data = %[1]s.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING id, data, updated_at, is_active`, t.table)
	return t.scanOne(t.db.QueryRowContext(ctx, query, id, b, at))
}

func (t *PostgresTable) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return t.setActive(ctx, id, false, at)
}

func (t *PostgresTable) Restore(ctx context.Context, id string, at time.Time) error {
	return t.setActive(ctx, id, true, at)
}

func (t *PostgresTable) setActive(ctx context.Context, id string, active bool, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET is_active = $2, updated_at = $3 WHERE id = $1`, t.table)
	res, err := t.db.ExecContext(ctx, query, id, active, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (t *PostgresTable) scanOne(row *sql.Row) (*Record, error) {
	var (
		rec Record
		raw []byte
	)
	if err := row.Scan(&rec.ID, &raw, &rec.UpdatedAt, &rec.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &rec.Data); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
