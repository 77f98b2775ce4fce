package dlplogs

import (
	"context"

	"github.com/fortifile/fortifile/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, entry *models.DlpLogEntry) (*models.DlpLogEntry, error)
	// ListRecent returns at most limit entries, most recent timestamp first.
	ListRecent(ctx context.Context, limit int) ([]*models.DlpLogEntry, error)
}
