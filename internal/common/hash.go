package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex-encoded SHA-256 of the given text. Used as
// the change-detection key for pages, sections and reference docs: equal
// hashes mean the stored embeddings are still valid.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
