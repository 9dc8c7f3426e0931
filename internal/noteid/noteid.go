// Package noteid derives stable note IDs for file-backed notes.
package noteid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "file:"

// ForPath returns a stable note ID for the given absolute file path. The same
// path always yields the same ID, so re-ingesting a changed file updates the
// same note instead of creating a duplicate.
func ForPath(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}
