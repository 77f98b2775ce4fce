// Package services contains server-side business logic. This file implements
// CodeService, the decryption-code exchange: delivering 6-digit codes out of
// band and verifying submitted codes under an attempt budget. Codes originate
// at upload time; CodeService never mints or rotates them.
package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/cryptox"
	"github.com/fortifile/fortifile/internal/mailx"
	"github.com/fortifile/fortifile/internal/server/codes"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/fortifile/fortifile/internal/server/repositories/repomanager"
)

const codeSaltSize = 16

// GenerateCode returns a uniformly random 6-digit decimal code,
// "000000" through "999999".
func GenerateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		panic(fmt.Errorf("error generating decryption code: %w", err))
	}
	return fmt.Sprintf("%06d", n.Int64())
}

// CodeService delivers and verifies per-file decryption codes. The server
// stores only a salt and a SHA-256 verifier; the code itself and the key
// derived from it are never persisted.
type CodeService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mailer      mailx.Transport
	attempts    codes.AttemptStore
	ttl         time.Duration
	maxAttempts int
}

// NewCodeService constructs a CodeService using repositories, the mail
// transport, the attempt store, and server config.
func NewCodeService(db *sql.DB, m repomanager.RepositoryManager, mailer mailx.Transport,
	attempts codes.AttemptStore, cfg *config.Config) *CodeService {
	return &CodeService{
		db:          db,
		repomanager: m,
		mailer:      mailer,
		attempts:    attempts,
		ttl:         cfg.CodeTTL,
		maxAttempts: cfg.CodeMaxAttempts,
	}
}

// Send emails the file's decryption code to the recipient. The code is the
// one issued when the file was uploaded; the caller supplies it and Send
// checks it against the stored verifier before any mail goes out, so a
// mistyped code is rejected rather than delivered. Code material is never
// touched here: delivery cannot re-key the file. The caller must own the
// file (or be an admin); anyone else gets common.ErrorNotFound.
func (s *CodeService) Send(ctx context.Context, callerID string, callerIsAdmin bool, fileID, recipient, code string) error {
	if recipient == "" {
		return fmt.Errorf("%w: recipient email is required", common.ErrorValidation)
	}
	if code == "" {
		return fmt.Errorf("%w: decryption code is required", common.ErrorValidation)
	}

	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID, callerID, callerIsAdmin)
	if err != nil {
		return err
	}

	valid, err := s.matchCode(file, code)
	if err != nil {
		return err
	}
	if !valid {
		return fmt.Errorf("%w: code does not match this file", common.ErrorValidation)
	}

	if err := s.mailer.Send(recipient, codeEmailSubject(file.FileName), codeEmailBody(file.FileName, code)); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorDeliveryFailed, err)
	}
	return nil
}

// Verify checks a submitted code against the file's stored verifier. Every
// call consumes one attempt before any comparison happens; exceeding the
// budget yields common.ErrorTooManyAttempts. A file without an issued code
// yields common.ErrorNoCode, a stale code common.ErrorCodeExpired. A
// mismatch is not an error: Verify returns false. A successful match clears
// the attempt counter.
func (s *CodeService) Verify(ctx context.Context, callerID string, callerIsAdmin bool, fileID, submitted string) (bool, error) {
	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID, callerID, callerIsAdmin)
	if err != nil {
		return false, err
	}

	n, err := s.attempts.Incr(ctx, fileID)
	if err != nil {
		return false, fmt.Errorf("error counting attempt: %w", err)
	}
	if n > int64(s.maxAttempts) {
		return false, common.ErrorTooManyAttempts
	}

	valid, err := s.matchCode(file, submitted)
	if err != nil || !valid {
		return valid, err
	}
	if err := s.attempts.Reset(ctx, fileID); err != nil {
		return false, fmt.Errorf("error resetting attempt counter: %w", err)
	}
	return true, nil
}

// matchCode compares the submitted code with the stored verifier in constant
// time with respect to the verifier value.
func (s *CodeService) matchCode(file *models.FileRecord, submitted string) (bool, error) {
	if len(file.CodeVerifier) == 0 || file.CodeIssuedAt == nil {
		return false, common.ErrorNoCode
	}
	if time.Since(*file.CodeIssuedAt) > s.ttl {
		return false, common.ErrorCodeExpired
	}

	candidate := cryptox.MakeCodeVerifier(submitted)
	return subtle.ConstantTimeCompare(candidate, file.CodeVerifier) == 1, nil
}

func codeEmailSubject(fileName string) string {
	return fmt.Sprintf("Decryption Code for %s", fileName)
}

func codeEmailBody(fileName, code string) string {
	return fmt.Sprintf(
		"Your decryption code for %q is: %s\n\nThe code expires and allows a limited number of attempts. Do not forward this message.\n",
		fileName, code)
}
