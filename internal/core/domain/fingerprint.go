package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the SHA-256 content hash of a document's text,
// rendered as 64 hex characters. Two submissions of the same doc_id with
// equal fingerprints are guaranteed to carry identical text, so reprocessing
// can be skipped.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
