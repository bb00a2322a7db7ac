package devices

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/pgerr"
	"github.com/google/uuid"
)

const deviceColumns = `id, external_id, tenant_id, name, platform, app_version, sync_config, status,
	last_seen_at, last_sync_at, next_sync_at, storage_used_bytes, cached_records, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, externalID string, attrs models.DeviceAttrs, defaults models.SyncConfig, now time.Time) (*models.Device, error) {
	cfg := defaults
	if attrs.Config != nil {
		cfg = *attrs.Config
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal sync config: %w", err)
	}

	query := `INSERT INTO devices (id, external_id, tenant_id, name, platform, app_version, sync_config,
			status, last_seen_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'online', $8, $8, $8)
		ON CONFLICT (external_id) DO UPDATE SET
			tenant_id = COALESCE(EXCLUDED.tenant_id, devices.tenant_id),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), devices.name),
			platform = COALESCE(NULLIF(EXCLUDED.platform, ''), devices.platform),
			app_version = COALESCE(NULLIF(EXCLUDED.app_version, ''), devices.app_version),
			sync_config = CASE WHEN $9 THEN EXCLUDED.sync_config ELSE devices.sync_config END,
			status = CASE WHEN devices.status IN ('online', 'offline') THEN 'online' ELSE devices.status END,
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + deviceColumns

	row := r.db.QueryRowContext(ctx, query,
		uuid.NewString(), externalID, dbx.NullString(attrs.TenantID), attrs.Name, attrs.Platform,
		attrs.AppVersion, rawCfg, now, attrs.Config != nil)

	d, err := scanDevice(row)
	if err != nil {
		if pgerr.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown tenant %q", common.ErrDeviceNotFound, attrs.TenantID)
		}
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1 FOR UPDATE`
	return scanDevice(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) Touch(ctx context.Context, id string, now time.Time) (*models.Device, error) {
	query := `UPDATE devices SET
			last_seen_at = $2,
			updated_at = $2,
			status = CASE WHEN status = 'offline' THEN 'online' ELSE status END
		WHERE id = $1
		RETURNING ` + deviceColumns
	return scanDevice(r.db.QueryRowContext(ctx, query, id, now))
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.DeviceStatus, now time.Time) error {
	query := `UPDATE devices SET status = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, string(status), now)
}

func (r *PostgresRepository) MarkSyncCompleted(ctx context.Context, id string, at time.Time, next *time.Time) error {
	query := `UPDATE devices SET status = 'online', last_sync_at = $2, next_sync_at = $3, updated_at = $2
		WHERE id = $1`
	return r.execOne(ctx, query, id, at, dbx.NullTime(next))
}

func (r *PostgresRepository) RecomputeStorage(ctx context.Context, id string) (models.StorageStats, error) {
	query := `UPDATE devices d SET
			storage_used_bytes = s.used,
			cached_records = s.n,
			updated_at = now()
		FROM (SELECT COALESCE(SUM(size_bytes), 0) AS used, COUNT(*) AS n
			FROM cache_entries WHERE device_id = $1) s
		WHERE d.id = $1
		RETURNING d.storage_used_bytes, d.cached_records`

	var st models.StorageStats
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&st.UsedBytes, &st.CachedRecords); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return st, common.ErrDeviceNotFound
		}
		return st, fmt.Errorf("db error: %w", err)
	}
	return st, nil
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
		return common.ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row *sql.Row) (*models.Device, error) {
	var (
		d        models.Device
		tenantID sql.NullString
		rawCfg   []byte
		status   string
		lastSync sql.NullTime
		nextSync sql.NullTime
	)
	err := row.Scan(&d.ID, &d.ExternalID, &tenantID, &d.Name, &d.Platform, &d.AppVersion, &rawCfg, &status,
		&d.LastSeenAt, &lastSync, &nextSync, &d.StorageUsedBytes, &d.CachedRecords, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if len(rawCfg) > 0 {
		if err := json.Unmarshal(rawCfg, &d.Config); err != nil {
			return nil, fmt.Errorf("decode sync config: %w", err)
		}
	}
	d.TenantID = tenantID.String
	d.Status = models.DeviceStatus(status)
	d.LastSyncAt = dbx.TimePtr(lastSync)
	d.NextSyncAt = dbx.TimePtr(nextSync)
	return &d, nil
}
