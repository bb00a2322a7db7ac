package queue

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/dmitrijs2005/offsync/internal/server/repositories/pgerr"
	"github.com/google/uuid"
)

const itemColumns = `id, device_id, seq, operation, table_name, record_id, payload, priority, status,
	retry_count, max_retries, client_watermark, last_error, created_at, updated_at, processed_at`

const priorityRank = `CASE priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END`

const eligible = `(status = 'pending' OR (status = 'failed' AND retry_count < max_retries))`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, item *models.QueueItem) error {
	payload, err := models.EncodePayload(item.Payload)
	if err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	query := `INSERT INTO queue_items (id, device_id, operation, table_name, record_id, payload, priority,
			status, max_retries, client_watermark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8, $9, $10, $10)
		RETURNING seq`

	err = r.db.QueryRowContext(ctx, query,
		item.ID, item.DeviceID, string(item.Operation), item.TableName, item.RecordID, payload,
		string(item.Priority), item.MaxRetries, dbx.NullTime(item.ClientWatermark), item.CreatedAt,
	).Scan(&item.Seq)
	if err != nil {
		if pgerr.IsForeignKeyViolation(err) {
			return common.ErrDeviceNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	item.Status = models.QueuePending
	item.UpdatedAt = item.CreatedAt
	return nil
}

func (r *PostgresRepository) Claim(ctx context.Context, deviceID string, limit int, now time.Time) ([]models.QueueItem, error) {
	query := `UPDATE queue_items SET status = 'syncing', updated_at = $3
		WHERE id IN (
			SELECT id FROM queue_items
			WHERE device_id = $1 AND ` + eligible + `
			ORDER BY ` + priorityRank + ` DESC, seq ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + itemColumns

	items, err := r.queryItems(ctx, query, deviceID, limit, now)
	if err != nil {
		return nil, err
	}

	// RETURNING order is unspecified.
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return items[i].Seq < items[j].Seq
	})
	return items, nil
}

func (r *PostgresRepository) Finish(ctx context.Context, id string, to models.QueueStatus, lastErr string, now time.Time) error {
	if !models.QueueSyncing.CanTransitionTo(to) || to == models.QueueFailed {
		return fmt.Errorf("%w: syncing -> %s", common.ErrInvalidTransition, to)
	}

	query := `UPDATE queue_items SET status = $2, last_error = $3, updated_at = $4, processed_at = $4
		WHERE id = $1 AND status = 'syncing'`

	res, err := r.db.ExecContext(ctx, query, id, string(to), dbx.NullString(lastErr), now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: item %s is not syncing", common.ErrInvalidTransition, id)
	}
	return nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, cause string, now time.Time) (*models.QueueItem, error) {
	query := `UPDATE queue_items SET
			status = 'failed',
			retry_count = retry_count + 1,
			last_error = $2,
			updated_at = $3,
			processed_at = $3
		WHERE id = $1 AND status = 'syncing'
		RETURNING ` + itemColumns

	items, err := r.queryItems(ctx, query, id, cause, now)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: item %s is not syncing", common.ErrInvalidTransition, id)
	}
	return &items[0], nil
}

func (r *PostgresRepository) FailStranded(ctx context.Context, cause string, now time.Time) (int, error) {
	query := `UPDATE queue_items SET
			status = 'failed',
			retry_count = retry_count + 1,
			last_error = $1,
			updated_at = $2,
			processed_at = $2
		WHERE status = 'syncing'`

	res, err := r.db.ExecContext(ctx, query, cause, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) CountEligible(ctx context.Context, deviceID string) (int, error) {
	query := `SELECT COUNT(*) FROM queue_items WHERE device_id = $1 AND ` + eligible

	var n int
	if err := r.db.QueryRowContext(ctx, query, deviceID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountOutcomesSince(ctx context.Context, deviceID string, since time.Time) (models.OutcomeCounts, error) {
	query := `SELECT
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'conflict'),
			COUNT(*) FILTER (WHERE status = 'skipped'),
			COUNT(*) FILTER (WHERE status = 'failed' AND retry_count >= max_retries)
		FROM queue_items
		WHERE device_id = $1 AND processed_at >= $2`

	var c models.OutcomeCounts
	err := r.db.QueryRowContext(ctx, query, deviceID, since).
		Scan(&c.Completed, &c.Failed, &c.Conflict, &c.Skipped, &c.Exhausted)
	if err != nil {
		return c, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListByDevice(ctx context.Context, deviceID string, filter models.ItemFilter) ([]models.QueueItem, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + itemColumns + ` FROM queue_items
		WHERE device_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY seq DESC
		LIMIT $3`
	return r.queryItems(ctx, query, deviceID, string(filter.Status), limit)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE id = $1`
	items, err := r.queryItems(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.ErrorNotFound
	}
	return &items[0], nil
}

func (r *PostgresRepository) queryItems(ctx context.Context, query string, args ...any) ([]models.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func scanItem(rows *sql.Rows) (*models.QueueItem, error) {
	var (
		item      models.QueueItem
		op        string
		priority  string
		status    string
		raw       []byte
		watermark sql.NullTime
		lastErr   sql.NullString
		processed sql.NullTime
	)
	err := rows.Scan(&item.ID, &item.DeviceID, &item.Seq, &op, &item.TableName, &item.RecordID, &raw,
		&priority, &status, &item.RetryCount, &item.MaxRetries, &watermark, &lastErr,
		&item.CreatedAt, &item.UpdatedAt, &processed)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	payload, err := models.DecodePayload(raw)
	if err != nil {
		return nil, fmt.Errorf("queue item %s: %w", item.ID, err)
	}

	item.Operation = models.Operation(op)
	item.Payload = payload
	item.Priority = models.Priority(priority)
	item.Status = models.QueueStatus(status)
	item.ClientWatermark = dbx.TimePtr(watermark)
	item.LastError = lastErr.String
	item.ProcessedAt = dbx.TimePtr(processed)
	return &item, nil
}
