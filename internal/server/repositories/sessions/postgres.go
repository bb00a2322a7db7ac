package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/pgerr"
	"github.com/google/uuid"
)

const sessionColumns = `id, device_id, session_type, status, initiated_by, total_operations, completed_operations,
	failed_operations, conflict_operations, success_rate, summary, started_at, completed_at, next_sync_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Open(ctx context.Context, s *models.SyncSession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Status = models.SessionSyncing

	query := `INSERT INTO sync_sessions (id, device_id, session_type, status, initiated_by, total_operations, started_at)
		VALUES ($1, $2, $3, 'syncing', $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, s.ID, s.DeviceID, string(s.Type), s.InitiatedBy, s.TotalOperations, s.StartedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return common.ErrSessionInProgress
		}
		if pgerr.IsForeignKeyViolation(err) {
			return common.ErrDeviceNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SyncSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sync_sessions WHERE id = $1`, id)
}

func (r *PostgresRepository) GetOpen(ctx context.Context, deviceID string) (*models.SyncSession, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM sync_sessions WHERE device_id = $1 AND status = 'syncing'`, deviceID)
}

func (r *PostgresRepository) ListOpen(ctx context.Context) ([]models.SyncSession, error) {
	return r.query(ctx, `SELECT `+sessionColumns+` FROM sync_sessions WHERE status = 'syncing' ORDER BY started_at`)
}

func (r *PostgresRepository) Close(ctx context.Context, s *models.SyncSession) error {
	summary, err := json.Marshal(s.Summary)
	if err != nil {
		return fmt.Errorf("marshal session summary: %w", err)
	}

	query := `UPDATE sync_sessions SET
			status = $2,
			completed_operations = $3,
			failed_operations = $4,
			conflict_operations = $5,
			success_rate = $6,
			summary = $7,
			completed_at = $8,
			next_sync_at = $9
		WHERE id = $1 AND status = 'syncing'`

	res, err := r.db.ExecContext(ctx, query, s.ID, string(s.Status), s.CompletedOperations, s.FailedOperations,
		s.ConflictOperations, s.SuccessRate, summary, dbx.NullTime(s.CompletedAt), dbx.NullTime(s.NextSyncAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s is not open", common.ErrSessionNotFound, s.ID)
	}
	return nil
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, limit int) ([]models.SyncSession, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + sessionColumns + ` FROM sync_sessions
		WHERE device_id = $1
		ORDER BY started_at DESC
		LIMIT $2`
	return r.query(ctx, query, deviceID, limit)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.SyncSession, error) {
	list, err := r.query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrSessionNotFound
	}
	return &list[0], nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.SyncSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.SyncSession
	for rows.Next() {
		var (
			s                 models.SyncSession
			stype, status     string
			summary           []byte
			completed, nextAt sql.NullTime
		)
		err := rows.Scan(&s.ID, &s.DeviceID, &stype, &status, &s.InitiatedBy, &s.TotalOperations,
			&s.CompletedOperations, &s.FailedOperations, &s.ConflictOperations, &s.SuccessRate, &summary,
			&s.StartedAt, &completed, &nextAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &s.Summary); err != nil {
				return nil, fmt.Errorf("decode session summary: %w", err)
			}
		}
		s.Type = models.SessionType(stype)
		s.Status = models.SessionStatus(status)
		s.CompletedAt = dbx.TimePtr(completed)
		s.NextSyncAt = dbx.TimePtr(nextAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
