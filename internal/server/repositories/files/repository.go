package files

import (
	"context"

	"github.com/fortifile/fortifile/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error)
	// GetByID returns the record only for its owner or an admin; anyone else
	// gets common.ErrorNotFound so existence never leaks.
	GetByID(ctx context.Context, id, callerID string, callerIsAdmin bool) (*models.FileRecord, error)
	List(ctx context.Context, userID string, view models.FileView, search string) ([]*models.FileRecord, error)
	Update(ctx context.Context, id, userID string, patch models.FilePatch) (*models.FileRecord, error)
	Delete(ctx context.Context, id, userID string) error
	TouchLastAccessed(ctx context.Context, id string) error
	Stats(ctx context.Context, userID string) (*models.StorageStats, error)
}
