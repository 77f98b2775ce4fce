package dlplogs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fortifile/fortifile/internal/dbx"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements the append-only DLP audit log over a
// dbx.DBTX. Entries are never updated or deleted.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// detected_types is stored as a comma-joined string; categories never
// contain commas.
func joinTypes(types []string) string { return strings.Join(types, ",") }

func splitTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (r *PostgresRepository) Create(ctx context.Context, entry *models.DlpLogEntry) (*models.DlpLogEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `
		INSERT INTO dlp_logs (id, user_id, file_name, file_size, detected_types, action)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING timestamp
	`
	var userID any
	if entry.UserID != "" {
		userID = entry.UserID
	}

	err := r.db.QueryRowContext(ctx, query,
		entry.ID, userID, entry.FileName, entry.FileSize, joinTypes(entry.DetectedTypes), entry.Action,
	).Scan(&entry.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*models.DlpLogEntry, error) {
	query := `
		SELECT id, user_id, file_name, file_size, detected_types, action, timestamp
		FROM dlp_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select dlp logs: %w", err)
	}
	defer rows.Close()

	var result []*models.DlpLogEntry
	for rows.Next() {
		var item models.DlpLogEntry
		var userID sql.NullString
		var types string
		if err := rows.Scan(&item.ID, &userID, &item.FileName, &item.FileSize, &types, &item.Action, &item.Timestamp); err != nil {
			return nil, err
		}
		item.UserID = userID.String
		item.DetectedTypes = splitTypes(types)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
