package models

import "time"

// FileRecord describes server-side metadata for an uploaded file. The
// (possibly encrypted) content itself is stored in object storage under
// StoragePath.
//
// Invariant: IsEncrypted is true if and only if SecurityLevel is "maximum";
// encryption is mandatory at the top tier and absent otherwise.
type FileRecord struct {
	ID     string
	UserID string

	FileName string
	FileSize int64
	FileType string
	// StoragePath is the object-storage key of the stored blob.
	StoragePath string

	SecurityLevel string
	IsEncrypted   bool
	IsStarred     bool
	IsTrash       bool

	// Nonce is the AEAD nonce used to encrypt the content (maximum tier only).
	Nonce []byte
	// CodeSalt is the per-file salt for deriving the key from the decryption
	// code. The key and the code themselves are never persisted.
	CodeSalt []byte
	// CodeVerifier is a hash of the current decryption code, used for
	// constant-time verification.
	CodeVerifier []byte
	// CodeIssuedAt is when the current decryption code was generated;
	// verification past the configured TTL is refused.
	CodeIssuedAt *time.Time

	UploadedAt   time.Time
	LastAccessed time.Time
}

// StorageStats summarizes one user's non-trash usage.
type StorageStats struct {
	TotalUsed int64 `json:"totalUsed"`
	FileCount int64 `json:"fileCount"`
}

// FileView filters file listings.
type FileView string

const (
	ViewAll     FileView = "all"
	ViewRecent  FileView = "recent"
	ViewStarred FileView = "starred"
	ViewTrash   FileView = "trash"
)

// FilePatch carries the mutable metadata fields of a file record; nil fields
// are left unchanged.
type FilePatch struct {
	FileName      *string `json:"fileName,omitempty"`
	SecurityLevel *string `json:"securityLevel,omitempty"`
	IsStarred     *bool   `json:"isStarred,omitempty"`
	IsTrash       *bool   `json:"isTrash,omitempty"`
}
