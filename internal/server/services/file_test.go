package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/dbx"
	"github.com/fortifile/fortifile/internal/dlp"
	"github.com/fortifile/fortifile/internal/logging"
	"github.com/fortifile/fortifile/internal/server/codes"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/fortifile/fortifile/internal/server/repositories/dlplogs"
	"github.com/fortifile/fortifile/internal/server/repositories/files"
	"github.com/fortifile/fortifile/internal/server/repositories/repomanager"
	"github.com/fortifile/fortifile/internal/server/repositories/users"
)

// -------- test fakes --------

type fakeUsersRepo struct {
	users.Repository
	mu    sync.Mutex
	byID  map[string]*models.User
	byUN  map[string]*models.User
	crErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}, byUN: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.crErr != nil {
		return nil, f.crErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New().String()
	u.CreatedAt = time.Now()
	f.byID[u.ID] = u
	f.byUN[u.UserName] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byUN[userName]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeFilesRepo struct {
	files.Repository
	mu      sync.Mutex
	records map[string]*models.FileRecord
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{records: map[string]*models.FileRecord{}}
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.FileRecord) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file.ID = uuid.New().String()
	file.UploadedAt = time.Now()
	file.LastAccessed = file.UploadedAt
	f.records[file.ID] = file
	return file, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id, callerID string, callerIsAdmin bool) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.records[id]
	if !ok || (file.UserID != callerID && !callerIsAdmin) {
		return nil, common.ErrorNotFound
	}
	cp := *file
	return &cp, nil
}

func (f *fakeFilesRepo) List(ctx context.Context, userID string, view models.FileView, search string) ([]*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FileRecord
	for _, file := range f.records {
		if file.UserID == userID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) Update(ctx context.Context, id, userID string, patch models.FilePatch) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.records[id]
	if !ok || file.UserID != userID {
		return nil, common.ErrorNotFound
	}
	if patch.FileName != nil {
		file.FileName = *patch.FileName
	}
	if patch.SecurityLevel != nil {
		file.SecurityLevel = *patch.SecurityLevel
	}
	if patch.IsStarred != nil {
		file.IsStarred = *patch.IsStarred
	}
	if patch.IsTrash != nil {
		file.IsTrash = *patch.IsTrash
	}
	cp := *file
	return &cp, nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.records[id]
	if !ok || file.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.records, id)
	return nil
}

func (f *fakeFilesRepo) TouchLastAccessed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.records[id]; ok {
		file.LastAccessed = time.Now()
	}
	return nil
}

func (f *fakeFilesRepo) Stats(ctx context.Context, userID string) (*models.StorageStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &models.StorageStats{}
	for _, file := range f.records {
		if file.UserID == userID && !file.IsTrash {
			stats.FileCount++
			stats.TotalUsed += file.FileSize
		}
	}
	return stats, nil
}

type fakeDlpLogsRepo struct {
	dlplogs.Repository
	mu        sync.Mutex
	entries   []*models.DlpLogEntry
	lastLimit int
	createErr error
}

func (f *fakeDlpLogsRepo) Create(ctx context.Context, entry *models.DlpLogEntry) (*models.DlpLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	entry.ID = uuid.New().String()
	entry.Timestamp = time.Now()
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeDlpLogsRepo) ListRecent(ctx context.Context, limit int) ([]*models.DlpLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	if len(f.entries) > limit {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	u *fakeUsersRepo
	f *fakeFilesRepo
	d *fakeDlpLogsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), f: newFakeFilesRepo(), d: &fakeDlpLogsRepo{}}
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository     { return m.u }
func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository     { return m.f }
func (m *fakeRepoManager) DlpLogs(db dbx.DBTX) dlplogs.Repository { return m.d }

type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (f *fakeObjectStore) Put(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return data, nil
}

func (f *fakeObjectStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStore) PresignedGetURL(ctx context.Context, key string) (string, error) {
	return "http://presigned.local/" + key, nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

// -------- helpers --------

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	manager  *fakeRepoManager
	store    *fakeObjectStore
	mailer   *fakeMailer
	attempts *codes.MemoryStore
	cfg      *config.Config

	codeService *CodeService
	fileService *FileService
}

func newFixture(t *testing.T, mutate func(cfg *config.Config)) *fixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.CodeMaxAttempts = 3
	if mutate != nil {
		mutate(cfg)
	}

	fx := &fixture{
		db:       db,
		mock:     mock,
		manager:  newFakeRepoManager(),
		store:    newFakeObjectStore(),
		mailer:   &fakeMailer{},
		attempts: codes.NewMemoryStore(cfg.CodeTTL),
		cfg:      cfg,
	}

	scanner, err := dlp.NewScanner(dlp.DefaultRules())
	require.NoError(t, err)

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	fx.codeService = NewCodeService(db, fx.manager, fx.mailer, fx.attempts, cfg)
	fx.fileService = NewFileService(db, fx.manager, fx.store, fx.mailer, fx.codeService, scanner, cfg, logger)
	return fx
}

const sensitiveText = "Contact john.doe@example.com, SSN 123-45-6789."

// -------- tests --------

func TestUploadStandardWithFindings(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "report.txt",
		ContentType:   "text/plain",
		Content:       []byte(sensitiveText),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	assert.Equal(t, dlp.ActionUploaded, res.Decision.Action)
	assert.Equal(t, []string{"EMAIL", "SSN"}, dlp.Categories(res.Decision.Findings))
	assert.Empty(t, res.Code)

	require.NotNil(t, res.File)
	assert.False(t, res.File.IsEncrypted)
	assert.Equal(t, "standard", res.File.SecurityLevel)
	assert.Equal(t, int64(len(sensitiveText)), res.File.FileSize)

	stored, err := fx.store.Get(ctx, res.File.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte(sensitiveText), stored)

	require.Len(t, fx.manager.d.entries, 1)
	entry := fx.manager.d.entries[0]
	assert.Equal(t, "uploaded", entry.Action)
	assert.Equal(t, "user1", entry.UserID)
	assert.Equal(t, []string{"EMAIL", "SSN"}, entry.DetectedTypes)
}

func TestUploadBlocked(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.DlpModeHigh = string(dlp.ModeBlock)
	})
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "report.txt",
		ContentType:   "text/plain",
		Content:       []byte(sensitiveText),
		SecurityLevel: "high",
	})
	require.NoError(t, err)

	assert.Equal(t, dlp.ActionBlocked, res.Decision.Action)
	assert.Nil(t, res.File)
	assert.Empty(t, fx.store.objects)
	assert.Empty(t, fx.manager.f.records)

	require.Len(t, fx.manager.d.entries, 1)
	assert.Equal(t, "blocked", fx.manager.d.entries[0].Action)
}

func TestUploadBlockedWinsOverCallerAction(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.DlpModeStandard = string(dlp.ModeBlock)
	})

	res, err := fx.fileService.Upload(context.Background(), "user1", UploadRequest{
		Name:          "report.txt",
		ContentType:   "text/plain",
		Content:       []byte(sensitiveText),
		SecurityLevel: "standard",
		Action:        "uploaded",
	})
	require.NoError(t, err)
	assert.Equal(t, dlp.ActionBlocked, res.Decision.Action)
	assert.Nil(t, res.File)
}

func TestUploadCancelledByCaller(t *testing.T) {
	fx := newFixture(t, nil)

	res, err := fx.fileService.Upload(context.Background(), "user1", UploadRequest{
		Name:          "report.txt",
		ContentType:   "text/plain",
		Content:       []byte(sensitiveText),
		SecurityLevel: "standard",
		Action:        "cancelled",
	})
	require.NoError(t, err)

	assert.Equal(t, dlp.ActionCancelled, res.Decision.Action)
	assert.Nil(t, res.File)
	assert.Empty(t, fx.store.objects)

	require.Len(t, fx.manager.d.entries, 1)
	assert.Equal(t, "cancelled", fx.manager.d.entries[0].Action)
}

func TestUploadCleanContent(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.DlpModeStandard = string(dlp.ModeBlock)
	})

	res, err := fx.fileService.Upload(context.Background(), "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("nothing sensitive here"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	assert.Equal(t, dlp.ActionUploaded, res.Decision.Action)
	assert.Empty(t, res.Decision.Findings)
	require.Len(t, fx.manager.d.entries, 1)
	assert.Empty(t, fx.manager.d.entries[0].DetectedTypes)
}

func TestUploadSurvivesAuditFailure(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	fx.manager.d.createErr = errors.New("db is down")

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("nothing sensitive here"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)
	require.NotNil(t, res.File)

	// the stored content stays reachable even though the audit entry is lost
	_, data, err := fx.fileService.Download(ctx, "user1", false, res.File.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("nothing sensitive here"), data)
}

func TestUploadBlockedAuditFailure(t *testing.T) {
	fx := newFixture(t, func(cfg *config.Config) {
		cfg.DlpModeStandard = string(dlp.ModeBlock)
	})
	fx.manager.d.createErr = errors.New("db is down")

	// before anything is stored, a lost audit entry fails the attempt
	_, err := fx.fileService.Upload(context.Background(), "user1", UploadRequest{
		Name:          "leak.txt",
		ContentType:   "text/plain",
		Content:       []byte(sensitiveText),
		SecurityLevel: "standard",
	})
	require.Error(t, err)
	assert.Empty(t, fx.store.objects)
}

func TestUploadInvalidLevel(t *testing.T) {
	fx := newFixture(t, nil)

	_, err := fx.fileService.Upload(context.Background(), "user1", UploadRequest{
		Name:          "report.txt",
		ContentType:   "text/plain",
		Content:       []byte("hello"),
		SecurityLevel: "ultra",
	})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, fx.manager.d.entries)
}

func TestUploadMaximumEncryptsAndDecrypts(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	plaintext := []byte("top secret payroll data")

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:           "payroll.txt",
		ContentType:    "text/plain",
		Content:        plaintext,
		SecurityLevel:  "maximum",
		RecipientEmail: "alice@example.com",
	})
	require.NoError(t, err)

	require.NotNil(t, res.File)
	assert.True(t, res.File.IsEncrypted)
	assert.Regexp(t, `^\d{6}$`, res.Code)
	assert.NotEmpty(t, res.File.Nonce)
	assert.NotEmpty(t, res.File.CodeSalt)
	assert.NotEmpty(t, res.File.CodeVerifier)
	assert.Equal(t, int64(len(plaintext)), res.File.FileSize)

	stored, err := fx.store.Get(ctx, res.File.StoragePath)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(stored, plaintext))

	require.Len(t, fx.mailer.sent, 1)
	assert.Equal(t, "alice@example.com", fx.mailer.sent[0].To)
	assert.Equal(t, "Decryption Code for payroll.txt", fx.mailer.sent[0].Subject)
	assert.Contains(t, fx.mailer.sent[0].Body, res.Code)

	valid, err := fx.codeService.Verify(ctx, "user1", false, res.File.ID, res.Code)
	require.NoError(t, err)
	assert.True(t, valid)

	_, data, err := fx.fileService.Download(ctx, "user1", false, res.File.ID, res.Code)
	require.NoError(t, err)
	assert.Equal(t, plaintext, data)
}

func TestDownloadWrongCode(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "payroll.txt",
		ContentType:   "text/plain",
		Content:       []byte("top secret"),
		SecurityLevel: "maximum",
	})
	require.NoError(t, err)

	wrong := "000000"
	if wrong == res.Code {
		wrong = "000001"
	}
	_, _, err = fx.fileService.Download(ctx, "user1", false, res.File.ID, wrong)
	assert.ErrorIs(t, err, common.ErrorDecryptionFailed)
}

func TestDownloadPlainFile(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("hello"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	file, data, err := fx.fileService.Download(ctx, "user1", false, res.File.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
	assert.Equal(t, res.File.ID, file.ID)
}

func TestDownloadNotOwner(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("hello"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	_, _, err = fx.fileService.Download(ctx, "user2", false, res.File.ID, "")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, _, err = fx.fileService.Download(ctx, "admin", true, res.File.ID, "")
	assert.NoError(t, err)
}

func TestDeleteTrashThenHardDelete(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "old.txt",
		ContentType:   "text/plain",
		Content:       []byte("obsolete"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	require.NoError(t, fx.fileService.Delete(ctx, "user1", res.File.ID))
	file, err := fx.fileService.Get(ctx, "user1", false, res.File.ID)
	require.NoError(t, err)
	assert.True(t, file.IsTrash)
	_, err = fx.store.Get(ctx, res.File.StoragePath)
	assert.NoError(t, err)

	require.NoError(t, fx.fileService.Delete(ctx, "user1", res.File.ID))
	_, err = fx.fileService.Get(ctx, "user1", false, res.File.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	_, err = fx.store.Get(ctx, res.File.StoragePath)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateSecurityLevel(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	res, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("hello"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	high := "high"
	updated, err := fx.fileService.Update(ctx, "user1", res.File.ID, models.FilePatch{SecurityLevel: &high})
	require.NoError(t, err)
	assert.Equal(t, "high", updated.SecurityLevel)

	max := "maximum"
	_, err = fx.fileService.Update(ctx, "user1", res.File.ID, models.FilePatch{SecurityLevel: &max})
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestStats(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
			Name:          fmt.Sprintf("f%d.txt", i),
			ContentType:   "text/plain",
			Content:       []byte("12345"),
			SecurityLevel: "standard",
		})
		require.NoError(t, err)
	}

	stats, err := fx.fileService.Stats(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.FileCount)
	assert.Equal(t, int64(15), stats.TotalUsed)
}

func TestDownloadURL(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	plain, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "notes.txt",
		ContentType:   "text/plain",
		Content:       []byte("hello"),
		SecurityLevel: "standard",
	})
	require.NoError(t, err)

	url, err := fx.fileService.DownloadURL(ctx, "user1", false, plain.File.ID)
	require.NoError(t, err)
	assert.Equal(t, "http://presigned.local/"+plain.File.StoragePath, url)

	sealed, err := fx.fileService.Upload(ctx, "user1", UploadRequest{
		Name:          "secret.txt",
		ContentType:   "text/plain",
		Content:       []byte("classified"),
		SecurityLevel: "maximum",
	})
	require.NoError(t, err)

	// encrypted content never leaves through a presigned URL
	_, err = fx.fileService.DownloadURL(ctx, "user1", false, sealed.File.ID)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestListUnknownView(t *testing.T) {
	fx := newFixture(t, nil)
	_, err := fx.fileService.List(context.Background(), "user1", "favourites", "")
	assert.ErrorIs(t, err, common.ErrorValidation)
}
