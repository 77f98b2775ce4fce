package models

import "time"

// DlpLogEntry is one immutable audit record, written exactly once per upload
// attempt. Normal flows never mutate or delete entries.
type DlpLogEntry struct {
	ID string
	// UserID is the uploader, empty when the user is unknown.
	UserID string

	FileName string
	FileSize int64
	// DetectedTypes lists category names only; occurrence counts are not
	// persisted.
	DetectedTypes []string
	// Action is "uploaded", "blocked", or "cancelled".
	Action string

	Timestamp time.Time
}
