package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func TestAppend(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+audit_log\s*\(device_id,\s*action,\s*details,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id$`).
		WithArgs("d-1", models.AuditDeviceRegistered, []byte(`{"external_id":"tab-1"}`), now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(17)))

	e := &models.AuditEntry{DeviceID: "d-1", Action: models.AuditDeviceRegistered,
		Details: map[string]any{"external_id": "tab-1"}, CreatedAt: now}
	require.NoError(t, repo.Append(context.Background(), e))
	assert.Equal(t, int64(17), e.ID)
}

func TestAppend_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+audit_log`).WillReturnError(errors.New("disk full"))

	err := repo.Append(context.Background(), &models.AuditEntry{Action: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestListByDevice(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "device_id", "action", "details", "created_at"}).
		AddRow(int64(2), "d-1", models.AuditConflictResolved, []byte(`{"conflict_id":"c-1"}`), now).
		AddRow(int64(1), "d-1", models.AuditDeviceRegistered, []byte(`{}`), now)
	mock.ExpectQuery(`(?s)FROM\s+audit_log\s+WHERE\s+device_id\s*=\s*\$1\s+ORDER\s+BY\s+id\s+DESC\s+LIMIT\s+\$2$`).
		WithArgs("d-1", 10).
		WillReturnRows(rows)

	got, err := repo.ListByDevice(context.Background(), "d-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c-1", got[0].Details["conflict_id"])
	assert.Equal(t, models.AuditDeviceRegistered, got[1].Action)
}
