package conflicts

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

const conflictColumns = `id, queue_item_id, device_id, table_name, record_id, conflict_type, server_data, client_data,
	server_timestamp, client_timestamp, strategy, requires_manual_review, resolved, resolution_data,
	resolved_by, resolution_notes, resolved_at, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Conflict) error {
	serverData, clientData, resolution, err := marshalData(c)
	if err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	query := `INSERT INTO conflicts (id, queue_item_id, device_id, table_name, record_id, conflict_type,
			server_data, client_data, server_timestamp, client_timestamp, strategy,
			requires_manual_review, resolved, resolution_data, resolved_by, resolution_notes, resolved_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.ExecContext(ctx, query,
		c.ID, c.QueueItemID, c.DeviceID, c.TableName, c.RecordID, string(c.Type),
		serverData, clientData, dbx.NullTime(c.ServerTimestamp), dbx.NullTime(c.ClientTimestamp), string(c.Strategy),
		c.RequiresManualReview, c.Resolved, resolution, dbx.NullString(c.ResolvedBy), dbx.NullString(c.ResolutionNotes),
		dbx.NullTime(c.ResolvedAt), c.CreatedAt)
	if err != nil {
		if pgerr.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", common.ErrConflictExists, c.QueueItemID)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Conflict, error) {
	return r.getOne(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`, id)
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Conflict, error) {
	return r.getOne(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, id string) (*models.Conflict, error) {
	list, err := r.query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.ErrorNotFound
	}
	return &list[0], nil
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, unresolvedOnly bool, limit int) ([]models.Conflict, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + conflictColumns + ` FROM conflicts
		WHERE device_id = $1 AND (NOT $2 OR NOT resolved)
		ORDER BY created_at DESC, id
		LIMIT $3`
	return r.query(ctx, query, deviceID, unresolvedOnly, limit)
}

func (r *PostgresRepository) HasUnresolved(ctx context.Context, deviceID, table, recordID string) (bool, error) {
	query := `SELECT EXISTS (
			SELECT 1 FROM conflicts
			WHERE device_id = $1 AND table_name = $2 AND record_id = $3 AND NOT resolved
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, deviceID, table, recordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) Resolve(ctx context.Context, c *models.Conflict) error {
	resolution, err := marshalMap(c.ResolutionData)
	if err != nil {
		return err
	}

	query := `UPDATE conflicts SET
			strategy = $2,
			requires_manual_review = $3,
			resolved = TRUE,
			resolution_data = $4,
			resolved_by = $5,
			resolution_notes = $6,
			resolved_at = $7
		WHERE id = $1 AND NOT resolved`

	res, err := r.db.ExecContext(ctx, query, c.ID, string(c.Strategy), c.RequiresManualReview, resolution,
		dbx.NullString(c.ResolvedBy), dbx.NullString(c.ResolutionNotes), dbx.NullTime(c.ResolvedAt))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrConflictAlreadyResolved
	}
	return nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Conflict
	for rows.Next() {
		var (
			c                                models.Conflict
			ctype, strategy                  string
			serverRaw, clientRaw, resolution []byte
			serverTS, clientTS, resolvedAt   sql.NullTime
			resolvedBy, resolutionNotes      sql.NullString
		)
		err := rows.Scan(&c.ID, &c.QueueItemID, &c.DeviceID, &c.TableName, &c.RecordID, &ctype, &serverRaw, &clientRaw,
			&serverTS, &clientTS, &strategy, &c.RequiresManualReview, &c.Resolved, &resolution,
			&resolvedBy, &resolutionNotes, &resolvedAt, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		for _, f := range []struct {
			raw []byte
			dst *map[string]any
		}{{serverRaw, &c.ServerData}, {clientRaw, &c.ClientData}, {resolution, &c.ResolutionData}} {
			if len(f.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("decode conflict %s: %w", c.ID, err)
			}
		}
		c.Type = models.ConflictType(ctype)
		c.Strategy = models.ResolutionStrategy(strategy)
		c.ServerTimestamp = dbx.TimePtr(serverTS)
		c.ClientTimestamp = dbx.TimePtr(clientTS)
		c.ResolvedAt = dbx.TimePtr(resolvedAt)
		c.ResolvedBy = resolvedBy.String
		c.ResolutionNotes = resolutionNotes.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func marshalData(c *models.Conflict) (server, client, resolution any, err error) {
	if server, err = marshalMap(c.ServerData); err != nil {
		return
	}
	if client, err = marshalMap(c.ClientData); err != nil {
		return
	}
	resolution, err = marshalMap(c.ResolutionData)
	return
}

// marshalMap keeps nil maps as SQL NULL.
func marshalMap(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal conflict data: %w", err)
	}
	return b, nil
}
