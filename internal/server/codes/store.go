// Package codes tracks decryption-code verification attempts per file, so a
// 6-digit code cannot be brute-forced over its 10^6 space. The counter is
// bumped before any comparison happens and expires with the code TTL.
package codes

import "context"

// AttemptStore counts verification attempts per file within a TTL window.
type AttemptStore interface {
	// Incr bumps the attempt counter for the file and returns the new count.
	// The first increment starts the TTL window.
	Incr(ctx context.Context, fileID string) (int64, error)
	// Reset clears the counter, used after a successful verification.
	Reset(ctx context.Context, fileID string) error
}
