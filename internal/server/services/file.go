package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/cryptox"
	"github.com/fortifile/fortifile/internal/dlp"
	"github.com/fortifile/fortifile/internal/logging"
	"github.com/fortifile/fortifile/internal/mailx"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/fortifile/fortifile/internal/server/objstore"
	"github.com/fortifile/fortifile/internal/server/repositories/repomanager"
)

// UploadRequest describes one upload attempt.
type UploadRequest struct {
	Name          string
	ContentType   string
	Content       []byte
	SecurityLevel string
	// Action is the caller's choice after a warn decision: "uploaded" to
	// proceed or "cancelled" to back out. A block decision always wins.
	Action string
	// RecipientEmail, when set on a maximum-tier upload, receives the
	// decryption code by email.
	RecipientEmail string
}

// UploadResult is the outcome of one upload attempt. File and Code are set
// only when the content was actually stored.
type UploadResult struct {
	Decision dlp.Decision
	File     *models.FileRecord
	// Code is the decryption code issued for a maximum-tier upload. It is
	// returned once and never persisted.
	Code string
}

// FileService implements the upload pipeline (scan, decide, encrypt, store,
// audit) and file metadata management.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       objstore.Store
	mailer      mailx.Transport
	codes       *CodeService
	scanner     *dlp.Scanner
	policy      dlp.Policy
	logger      logging.Logger
}

// NewFileService constructs a FileService from its collaborators and server
// config.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, store objstore.Store,
	mailer mailx.Transport, codeService *CodeService, scanner *dlp.Scanner,
	cfg *config.Config, logger logging.Logger) *FileService {
	return &FileService{
		db:          db,
		repomanager: m,
		store:       store,
		mailer:      mailer,
		codes:       codeService,
		scanner:     scanner,
		policy:      cfg.DlpPolicy(),
		logger:      logger,
	}
}

// EvaluateUpload scans the content and applies the decision policy without
// any side effects. Callers use it to preview findings before committing.
func (s *FileService) EvaluateUpload(name, contentType string, content []byte, level string) (dlp.Decision, error) {
	if !dlp.ValidLevel(level) {
		return dlp.Decision{}, fmt.Errorf("%w: unknown security level %q", common.ErrorValidation, level)
	}
	findings := s.scanner.Scan(name, contentType, content)
	return s.policy.Decide(dlp.SecurityLevel(level), findings), nil
}

// Upload runs one upload attempt end to end: scan, decide, optionally
// encrypt, store, and audit. Exactly one DLP log entry is written per
// attempt, whatever the outcome. Blocked and cancelled attempts store
// nothing. Once the content and record are stored, an audit write failure
// is logged rather than failing the completed upload.
//
// Maximum-tier content is always encrypted: a fresh code and salt are
// generated, the key is derived from them, and only ciphertext reaches
// object storage. The code is returned in the result and, when
// RecipientEmail is set, emailed to the recipient.
func (s *FileService) Upload(ctx context.Context, userID string, req UploadRequest) (*UploadResult, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}
	decision, err := s.EvaluateUpload(req.Name, req.ContentType, req.Content, req.SecurityLevel)
	if err != nil {
		return nil, err
	}

	action := decision.Action
	if action == dlp.ActionUploaded && req.Action == string(dlp.ActionCancelled) {
		action = dlp.ActionCancelled
	}

	if action != dlp.ActionUploaded {
		if err := s.audit(ctx, userID, req, decision.Findings, action); err != nil {
			return nil, err
		}
		return &UploadResult{Decision: dlp.Decision{Action: action, Findings: decision.Findings}}, nil
	}

	record := &models.FileRecord{
		UserID:        userID,
		FileName:      req.Name,
		FileSize:      int64(len(req.Content)),
		FileType:      req.ContentType,
		StoragePath:   objstore.RandomStorageKey(),
		SecurityLevel: req.SecurityLevel,
	}

	content := req.Content
	var code string
	if req.SecurityLevel == string(dlp.LevelMaximum) {
		code = GenerateCode()
		now := time.Now()
		record.CodeSalt = common.GenerateRandByteArray(codeSaltSize)
		record.CodeVerifier = cryptox.MakeCodeVerifier(code)
		record.CodeIssuedAt = &now

		key := cryptox.DeriveKeyFromCode(code, record.CodeSalt)
		ciphertext, nonce, err := cryptox.Encrypt(content, key)
		common.WipeByteArray(key)
		if err != nil {
			return nil, fmt.Errorf("error encrypting content: %w", err)
		}
		content = ciphertext
		record.Nonce = nonce
		record.IsEncrypted = true
	}

	if err := s.store.Put(ctx, record.StoragePath, content); err != nil {
		return nil, fmt.Errorf("error storing content: %w", err)
	}

	created, err := s.repomanager.Files(s.db).Create(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("error creating file record: %w", err)
	}

	if err := s.audit(ctx, userID, req, decision.Findings, dlp.ActionUploaded); err != nil {
		// the content and record already exist, do not fail the upload
		s.logger.Error(ctx, "audit entry write failed", "file_id", created.ID, "error", err)
	}

	if code != "" && req.RecipientEmail != "" {
		if err := s.mailer.Send(req.RecipientEmail, codeEmailSubject(created.FileName),
			codeEmailBody(created.FileName, code)); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrorDeliveryFailed, err)
		}
	}

	return &UploadResult{
		Decision: dlp.Decision{Action: dlp.ActionUploaded, Findings: decision.Findings},
		File:     created,
		Code:     code,
	}, nil
}

func (s *FileService) audit(ctx context.Context, userID string, req UploadRequest, findings []dlp.Finding, action dlp.Action) error {
	entry := &models.DlpLogEntry{
		UserID:        userID,
		FileName:      req.Name,
		FileSize:      int64(len(req.Content)),
		DetectedTypes: dlp.Categories(findings),
		Action:        string(action),
	}
	if _, err := s.repomanager.DlpLogs(s.db).Create(ctx, entry); err != nil {
		return fmt.Errorf("error writing audit entry: %w", err)
	}
	return nil
}

// Download returns the file record and its plaintext content. Encrypted
// files require the decryption code: the code is verified first (consuming
// an attempt) and the key is derived from it and the stored salt. A wrong
// code yields common.ErrorDecryptionFailed.
func (s *FileService) Download(ctx context.Context, callerID string, callerIsAdmin bool, fileID, code string) (*models.FileRecord, []byte, error) {
	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID, callerID, callerIsAdmin)
	if err != nil {
		return nil, nil, err
	}

	data, err := s.store.Get(ctx, file.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("error fetching content: %w", err)
	}

	if file.IsEncrypted {
		valid, err := s.codes.Verify(ctx, callerID, callerIsAdmin, fileID, code)
		if err != nil {
			return nil, nil, err
		}
		if !valid {
			return nil, nil, common.ErrorDecryptionFailed
		}

		key := cryptox.DeriveKeyFromCode(code, file.CodeSalt)
		plaintext, err := cryptox.Decrypt(data, key, file.Nonce)
		common.WipeByteArray(key)
		if err != nil {
			return nil, nil, err
		}
		data = plaintext
	}

	if err := repo.TouchLastAccessed(ctx, fileID); err != nil {
		return nil, nil, fmt.Errorf("error updating last access: %w", err)
	}

	return file, data, nil
}

// DownloadURL returns a short-lived presigned URL for the stored blob, so
// large downloads bypass the API process. Encrypted files are refused: their
// bytes must flow through Download, behind code verification.
func (s *FileService) DownloadURL(ctx context.Context, callerID string, callerIsAdmin bool, fileID string) (string, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID, callerID, callerIsAdmin)
	if err != nil {
		return "", err
	}
	if file.IsEncrypted {
		return "", fmt.Errorf("%w: encrypted files must be downloaded with their decryption code", common.ErrorValidation)
	}
	url, err := s.store.PresignedGetURL(ctx, file.StoragePath)
	if err != nil {
		return "", fmt.Errorf("error presigning url: %w", err)
	}
	return url, nil
}

// Get returns the file record for its owner or an admin.
func (s *FileService) Get(ctx context.Context, callerID string, callerIsAdmin bool, fileID string) (*models.FileRecord, error) {
	return s.repomanager.Files(s.db).GetByID(ctx, fileID, callerID, callerIsAdmin)
}

// List returns the caller's files for the given view, optionally filtered by
// a case-insensitive name search.
func (s *FileService) List(ctx context.Context, userID string, view models.FileView, search string) ([]*models.FileRecord, error) {
	switch view {
	case "":
		view = models.ViewAll
	case models.ViewAll, models.ViewRecent, models.ViewStarred, models.ViewTrash:
	default:
		return nil, fmt.Errorf("%w: unknown view %q", common.ErrorValidation, view)
	}
	return s.repomanager.Files(s.db).List(ctx, userID, view, search)
}

// Update patches file metadata. The security level may move between standard
// and high, but not to or from maximum: the encryption state is fixed at
// upload time.
func (s *FileService) Update(ctx context.Context, userID, fileID string, patch models.FilePatch) (*models.FileRecord, error) {
	if patch.SecurityLevel != nil {
		if !dlp.ValidLevel(*patch.SecurityLevel) {
			return nil, fmt.Errorf("%w: unknown security level %q", common.ErrorValidation, *patch.SecurityLevel)
		}
		repo := s.repomanager.Files(s.db)
		current, err := repo.GetByID(ctx, fileID, userID, false)
		if err != nil {
			return nil, err
		}
		if (*patch.SecurityLevel == string(dlp.LevelMaximum)) != current.IsEncrypted {
			return nil, fmt.Errorf("%w: security level cannot cross the maximum tier after upload", common.ErrorValidation)
		}
	}
	if patch.FileName != nil && *patch.FileName == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrorValidation)
	}
	return s.repomanager.Files(s.db).Update(ctx, fileID, userID, patch)
}

// Delete moves a live file to trash; deleting a trashed file removes the
// record and its stored content for good.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID, userID, false)
	if err != nil {
		return err
	}

	if !file.IsTrash {
		trash := true
		if _, err := repo.Update(ctx, fileID, userID, models.FilePatch{IsTrash: &trash}); err != nil {
			return fmt.Errorf("error trashing file: %w", err)
		}
		return nil
	}

	if err := repo.Delete(ctx, fileID, userID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, file.StoragePath); err != nil {
		// The record is already gone; an orphaned blob is not worth failing
		// the request over.
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error deleting content: %w", err)
		}
	}
	return nil
}

// Stats summarizes the caller's non-trash storage usage.
func (s *FileService) Stats(ctx context.Context, userID string) (*models.StorageStats, error) {
	return s.repomanager.Files(s.db).Stats(ctx, userID)
}
