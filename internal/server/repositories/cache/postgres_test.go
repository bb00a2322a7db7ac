package cache

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/offsync/internal/common"
	"github.com/dmitrijs2005/offsync/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

var cols = []string{"device_id", "table_name", "record_id", "data", "content_hash", "size_bytes", "priority",
	"access_frequency", "version", "is_dirty", "is_critical", "expires_at", "last_accessed_at", "created_at", "updated_at"}

func TestUpsert_BumpsVersionOnHashChange(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()
	exp := now.Add(time.Hour)

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+cache_entries.*ON\s+CONFLICT\s+\(device_id,\s*table_name,\s*record_id\).*version\s*=\s*CASE\s+WHEN\s+cache_entries\.content_hash\s*<>\s*EXCLUDED\.content_hash`).
		WithArgs("d-1", "menu", "m-1", []byte(`{"name":"soup"}`), "abc", int64(15), "high", false, false, exp, now).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("d-1", "menu", "m-1", []byte(`{"name":"soup"}`), "abc", int64(15),
			"high", int64(4), int64(2), false, false, exp, now, now, now))

	got, err := repo.Upsert(context.Background(), &models.CacheEntry{
		DeviceID: "d-1", TableName: "menu", RecordID: "m-1", Data: map[string]any{"name": "soup"},
		ContentHash: "abc", SizeBytes: 15, Priority: models.PriorityHigh, ExpiresAt: &exp, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, int64(4), got.AccessFrequency)
	assert.Equal(t, "soup", got.Data["name"])
}

func TestUpsert_CriticalHasNoExpiry(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT\s+INTO\s+cache_entries`).
		WithArgs("d-1", "procedures", "p-1", []byte(`{"step":1}`), "h", int64(10), "critical", false, true, nil, now).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("d-1", "procedures", "p-1", []byte(`{"step":1}`), "h", int64(10),
			"critical", int64(0), int64(1), false, true, nil, now, now, now))

	got, err := repo.Upsert(context.Background(), &models.CacheEntry{
		DeviceID: "d-1", TableName: "procedures", RecordID: "p-1", Data: map[string]any{"step": 1},
		ContentHash: "h", SizeBytes: 10, Priority: models.PriorityCritical, IsCritical: true, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, got.IsCritical)
	assert.Nil(t, got.ExpiresAt)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+cache_entries\s+WHERE\s+device_id\s*=\s*\$1\s+AND\s+table_name\s*=\s*\$2\s+AND\s+record_id\s*=\s*\$3$`).
		WithArgs("d-1", "menu", "nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "d-1", "menu", "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestTouchAccessAndSetDirty(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectExec(`(?s)^UPDATE\s+cache_entries\s+SET\s+access_frequency\s*=\s*access_frequency\s*\+\s*1`).
		WithArgs("d-1", "menu", "m-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+cache_entries\s+SET\s+is_dirty\s*=\s*\$4`).
		WithArgs("d-1", "menu", "m-1", true, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+cache_entries\s+SET\s+is_dirty`).
		WithArgs("d-1", "menu", "gone", false, now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.TouchAccess(context.Background(), "d-1", "menu", "m-1", now))
	require.NoError(t, repo.SetDirty(context.Background(), "d-1", "menu", "m-1", true, now))
	assert.ErrorIs(t, repo.SetDirty(context.Background(), "d-1", "menu", "gone", false, now), common.ErrorNotFound)
}

func TestDeleteExpired_SkipsCriticalAndDedupesDevices(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)^DELETE\s+FROM\s+cache_entries\s+WHERE\s+NOT\s+is_critical\s+AND\s+expires_at\s+IS\s+NOT\s+NULL\s+AND\s+expires_at\s*<=\s*\$1\s+RETURNING\s+device_id$`).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"device_id"}).AddRow("d-2").AddRow("d-1").AddRow("d-2"))

	removed, ids, err := repo.DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, []string{"d-1", "d-2"}, ids)
}

func TestSizeExcluding(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SUM\(size_bytes\).*NOT\s+\(table_name\s*=\s*\$2\s+AND\s+record_id\s*=\s*\$3\)`).
		WithArgs("d-1", "menu", "m-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(int64(900)))

	n, err := repo.SizeExcluding(context.Background(), "d-1", "menu", "m-1")
	require.NoError(t, err)
	assert.Equal(t, int64(900), n)
}
