package dlplogs

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestCreate_JoinsDetectedTypes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+dlp_logs\b.*RETURNING\s+timestamp`).
		WithArgs("id1", "u1", "report.txt", int64(42), "EMAIL,SSN", "uploaded").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow(now))

	entry, err := repo.Create(context.Background(), &models.DlpLogEntry{
		ID:            "id1",
		UserID:        "u1",
		FileName:      "report.txt",
		FileSize:      42,
		DetectedTypes: []string{"EMAIL", "SSN"},
		Action:        "uploaded",
	})
	require.NoError(t, err)
	assert.Equal(t, now, entry.Timestamp)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_NullUserID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^\s*INSERT\s+INTO\s+dlp_logs\b`).
		WithArgs("id2", nil, "f.bin", int64(1), "", "blocked").
		WillReturnRows(sqlmock.NewRows([]string{"timestamp"}).AddRow(time.Now()))

	_, err := repo.Create(context.Background(), &models.DlpLogEntry{
		ID:       "id2",
		FileName: "f.bin",
		FileSize: 1,
		Action:   "blocked",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_SplitsTypesAndOrders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	t2 := time.Now()
	t1 := t2.Add(-time.Hour)

	rows := sqlmock.NewRows([]string{"id", "user_id", "file_name", "file_size", "detected_types", "action", "timestamp"}).
		AddRow("b", "u1", "late.txt", int64(2), "EMAIL", "uploaded", t2).
		AddRow("a", nil, "early.txt", int64(1), "", "cancelled", t1)

	mock.ExpectQuery(`(?s)^\s*SELECT\s+.*FROM\s+dlp_logs\s+ORDER\s+BY\s+timestamp\s+DESC\s+LIMIT\s+\$1`).
		WithArgs(100).
		WillReturnRows(rows)

	got, err := repo.ListRecent(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, []string{"EMAIL"}, got[0].DetectedTypes)
	assert.Equal(t, "a", got[1].ID)
	assert.Empty(t, got[1].DetectedTypes)
	assert.Empty(t, got[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}
