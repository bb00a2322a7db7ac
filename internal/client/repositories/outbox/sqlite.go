package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/offsync/internal/api"
	"github.com/dmitrijs2005/offsync/internal/client/models"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/dbx"
	"github.com/google/uuid"
)

const defaultListLimit = 100

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// payload is the JSON body stored in the payload column.
type payload struct {
	Fields  map[string]any   `json:"fields,omitempty"`
	Records []api.BulkRecord `json:"records,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, e *models.OutboxEntry) error {
	body, err := json.Marshal(payload{Fields: e.Fields, Records: e.Records, Reason: e.Reason})
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}

	id := uuid.NewString()
	created := r.now().UTC()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox (id, operation, table_name, record_id, payload, priority, client_watermark, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, e.Operation, e.TableName, e.RecordID, string(body), e.Priority, formatTime(e.ClientWatermark),
		string(models.OutboxPending), formatTime(&created))
	if err != nil {
		return fmt.Errorf("failed to insert outbox entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read outbox seq: %w", err)
	}

	e.ID, e.Seq, e.Status, e.CreatedAt = id, seq, models.OutboxPending, created
	return nil
}

const selectColumns = `seq, id, operation, table_name, record_id, payload, priority, client_watermark,
	status, server_item_id, last_error, attempts, created_at, sent_at`

func scanEntry(rows *sql.Rows) (models.OutboxEntry, error) {
	var (
		e                        models.OutboxEntry
		body, status             string
		watermark, created, sent sql.NullString
		decoded                  payload
		err                      error
	)
	if err = rows.Scan(&e.Seq, &e.ID, &e.Operation, &e.TableName, &e.RecordID, &body, &e.Priority, &watermark,
		&status, &e.ServerItemID, &e.LastError, &e.Attempts, &created, &sent); err != nil {
		return e, fmt.Errorf("failed to scan outbox row: %w", err)
	}
	if err = json.Unmarshal([]byte(body), &decoded); err != nil {
		return e, fmt.Errorf("failed to decode outbox payload %s: %w", e.ID, err)
	}
	e.Fields, e.Records, e.Reason = decoded.Fields, decoded.Records, decoded.Reason
	e.Status = models.OutboxStatus(status)

	if e.ClientWatermark, err = parseTime(watermark); err != nil {
		return e, fmt.Errorf("failed to parse client_watermark of %s: %w", e.ID, err)
	}
	if e.SentAt, err = parseTime(sent); err != nil {
		return e, fmt.Errorf("failed to parse sent_at of %s: %w", e.ID, err)
	}
	c, err := parseTime(created)
	if err != nil {
		return e, fmt.Errorf("failed to parse created_at of %s: %w", e.ID, err)
	}
	if c != nil {
		e.CreatedAt = *c
	}
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]models.OutboxEntry, error) {
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, limit int) ([]models.OutboxEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM outbox WHERE status = ? ORDER BY seq LIMIT ?`,
		string(models.OutboxPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending outbox entries: %w", err)
	}
	return scanEntries(rows)
}

func (r *SQLiteRepository) List(ctx context.Context, status models.OutboxStatus, limit int) ([]models.OutboxEntry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM outbox WHERE (? = '' OR status = ?) ORDER BY seq DESC LIMIT ?`,
		string(status), string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbox entries: %w", err)
	}
	return scanEntries(rows)
}

// update runs a single-row update of a pending entry.
func (r *SQLiteRepository) update(ctx context.Context, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update outbox entry %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("outbox entry %s: %w", id, common.ErrorNotFound)
	}
	return nil
}

func (r *SQLiteRepository) MarkSent(ctx context.Context, id, serverItemID string, at time.Time) error {
	return r.update(ctx, id, `
		UPDATE outbox SET status = ?, server_item_id = ?, sent_at = ?, last_error = '', attempts = attempts + 1
		WHERE id = ? AND status = ?
	`, string(models.OutboxSent), serverItemID, formatTime(&at), id, string(models.OutboxPending))
}

func (r *SQLiteRepository) MarkRejected(ctx context.Context, id, reason string) error {
	return r.update(ctx, id, `
		UPDATE outbox SET status = ?, last_error = ?, attempts = attempts + 1
		WHERE id = ? AND status = ?
	`, string(models.OutboxRejected), reason, id, string(models.OutboxPending))
}

func (r *SQLiteRepository) RecordAttempt(ctx context.Context, id, lastErr string) error {
	return r.update(ctx, id, `
		UPDATE outbox SET last_error = ?, attempts = attempts + 1
		WHERE id = ? AND status = ?
	`, lastErr, id, string(models.OutboxPending))
}

func (r *SQLiteRepository) Counts(ctx context.Context) (map[models.OutboxStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox entries: %w", err)
	}
	defer rows.Close()

	result := map[models.OutboxStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		result[models.OutboxStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox counts: %w", err)
	}
	return result, nil
}
