package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/dlp"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/fortifile/fortifile/internal/server/repositories/repomanager"
)

// maxLogEntries caps how many audit entries a single listing returns.
const maxLogEntries = 100

// DlpService maintains the append-only DLP audit log.
type DlpService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewDlpService constructs a DlpService using repositories.
func NewDlpService(db *sql.DB, m repomanager.RepositoryManager) *DlpService {
	return &DlpService{db: db, repomanager: m}
}

// Log appends one audit entry. Entries are immutable once written.
func (s *DlpService) Log(ctx context.Context, entry *models.DlpLogEntry) (*models.DlpLogEntry, error) {
	switch dlp.Action(entry.Action) {
	case dlp.ActionUploaded, dlp.ActionBlocked, dlp.ActionCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", common.ErrorValidation, entry.Action)
	}
	if entry.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}

	e, err := s.repomanager.DlpLogs(s.db).Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("error writing audit entry: %w", err)
	}
	return e, nil
}

// List returns the most recent audit entries, newest first, at most 100.
func (s *DlpService) List(ctx context.Context) ([]*models.DlpLogEntry, error) {
	return s.repomanager.DlpLogs(s.db).ListRecent(ctx, maxLogEntries)
}
