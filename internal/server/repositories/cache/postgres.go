package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
)

const entryColumns = `device_id, table_name, record_id, data, content_hash, size_bytes, priority, access_frequency,
	version, is_dirty, is_critical, expires_at, last_accessed_at, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, e *models.CacheEntry) (*models.CacheEntry, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal cache data: %w", err)
	}

	query := `INSERT INTO cache_entries (device_id, table_name, record_id, data, content_hash, size_bytes, priority,
			is_dirty, is_critical, expires_at, last_accessed_at, created_at, updated_at, version, access_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $11, 1, 0)
		ON CONFLICT (device_id, table_name, record_id) DO UPDATE SET
			data = EXCLUDED.data,
			content_hash = EXCLUDED.content_hash,
			size_bytes = EXCLUDED.size_bytes,
			priority = EXCLUDED.priority,
			is_dirty = EXCLUDED.is_dirty,
			is_critical = EXCLUDED.is_critical,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			version = CASE WHEN cache_entries.content_hash <> EXCLUDED.content_hash
				THEN cache_entries.version + 1 ELSE cache_entries.version END
		RETURNING ` + entryColumns

	row := r.db.QueryRowContext(ctx, query,
		e.DeviceID, e.TableName, e.RecordID, data, e.ContentHash, e.SizeBytes, string(e.Priority),
		e.IsDirty, e.IsCritical, dbx.NullTime(e.ExpiresAt), e.UpdatedAt)
	return scanEntry(row)
}

func (r *PostgresRepository) Get(ctx context.Context, deviceID, table, recordID string) (*models.CacheEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM cache_entries
		WHERE device_id = $1 AND table_name = $2 AND record_id = $3`
	return scanEntry(r.db.QueryRowContext(ctx, query, deviceID, table, recordID))
}

func (r *PostgresRepository) TouchAccess(ctx context.Context, deviceID, table, recordID string, now time.Time) error {
	query := `UPDATE cache_entries SET access_frequency = access_frequency + 1, last_accessed_at = $4
		WHERE device_id = $1 AND table_name = $2 AND record_id = $3`
	return r.execOne(ctx, query, deviceID, table, recordID, now)
}

func (r *PostgresRepository) SetDirty(ctx context.Context, deviceID, table, recordID string, dirty bool, now time.Time) error {
	query := `UPDATE cache_entries SET is_dirty = $4, updated_at = $5
		WHERE device_id = $1 AND table_name = $2 AND record_id = $3`
	return r.execOne(ctx, query, deviceID, table, recordID, dirty, now)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int, []string, error) {
	query := `DELETE FROM cache_entries
		WHERE NOT is_critical AND expires_at IS NOT NULL AND expires_at <= $1
		RETURNING device_id`

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return 0, nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	removed := 0
	seen := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, nil, fmt.Errorf("db error: %w", err)
		}
		removed++
		seen[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("db error: %w", err)
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return removed, out, nil
}

func (r *PostgresRepository) SizeExcluding(ctx context.Context, deviceID, table, recordID string) (int64, error) {
	query := `SELECT COALESCE(SUM(size_bytes), 0) FROM cache_entries
		WHERE device_id = $1 AND NOT (table_name = $2 AND record_id = $3)`

	var n int64
	if err := r.db.QueryRowContext(ctx, query, deviceID, table, recordID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func scanEntry(row *sql.Row) (*models.CacheEntry, error) {
	var (
		e         models.CacheEntry
		raw       []byte
		priority  string
		expiresAt sql.NullTime
	)
	err := row.Scan(&e.DeviceID, &e.TableName, &e.RecordID, &raw, &e.ContentHash, &e.SizeBytes, &priority,
		&e.AccessFrequency, &e.Version, &e.IsDirty, &e.IsCritical, &expiresAt, &e.LastAccessedAt,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(raw, &e.Data); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	e.Priority = models.Priority(priority)
	e.ExpiresAt = dbx.TimePtr(expiresAt)
	return &e, nil
}
