package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/dbx"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements file metadata storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, user_id, file_name, file_size, file_type, storage_path,
	security_level, is_encrypted, is_starred, is_trash,
	nonce, code_salt, code_verifier, code_issued_at, uploaded_at, last_accessed`

func scanFile(row interface{ Scan(...any) error }) (*models.FileRecord, error) {
	f := &models.FileRecord{}
	err := row.Scan(&f.ID, &f.UserID, &f.FileName, &f.FileSize, &f.FileType, &f.StoragePath,
		&f.SecurityLevel, &f.IsEncrypted, &f.IsStarred, &f.IsTrash,
		&f.Nonce, &f.CodeSalt, &f.CodeVerifier, &f.CodeIssuedAt, &f.UploadedAt, &f.LastAccessed)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}

	query := `
		INSERT INTO files (id, user_id, file_name, file_size, file_type, storage_path,
			security_level, is_encrypted, is_starred, is_trash, nonce, code_salt, code_verifier, code_issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING uploaded_at, last_accessed
	`
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.UserID, file.FileName, file.FileSize, file.FileType, file.StoragePath,
		file.SecurityLevel, file.IsEncrypted, file.IsStarred, file.IsTrash,
		file.Nonce, file.CodeSalt, file.CodeVerifier, file.CodeIssuedAt,
	).Scan(&file.UploadedAt, &file.LastAccessed)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id, callerID string, callerIsAdmin bool) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	// absence and access denial are deliberately indistinguishable
	if f.UserID != callerID && !callerIsAdmin {
		return nil, common.ErrorNotFound
	}
	return f, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, view models.FileView, search string) ([]*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE user_id = $1`
	args := []any{userID}

	switch view {
	case models.ViewTrash:
		query += ` AND is_trash = TRUE`
	case models.ViewStarred:
		query += ` AND is_trash = FALSE AND is_starred = TRUE`
	default:
		query += ` AND is_trash = FALSE`
	}

	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(` AND file_name ILIKE $%d`, len(args))
	}

	if view == models.ViewRecent {
		query += ` ORDER BY last_accessed DESC LIMIT 20`
	} else {
		query += ` ORDER BY uploaded_at DESC`
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id, userID string, patch models.FilePatch) (*models.FileRecord, error) {
	query := `
		UPDATE files SET
			file_name = COALESCE($3, file_name),
			security_level = COALESCE($4, security_level),
			is_starred = COALESCE($5, is_starred),
			is_trash = COALESCE($6, is_trash)
		WHERE id = $1 AND user_id = $2
		RETURNING ` + fileColumns

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, userID,
		patch.FileName, patch.SecurityLevel, patch.IsStarred, patch.IsTrash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id, userID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) TouchLastAccessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE files SET last_accessed = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, userID string) (*models.StorageStats, error) {
	query := `
		SELECT COALESCE(SUM(file_size), 0), COUNT(id) FROM files
		WHERE user_id = $1 AND is_trash = FALSE
	`
	stats := &models.StorageStats{}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.TotalUsed, &stats.FileCount); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return stats, nil
}
