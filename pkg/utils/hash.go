package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the SHA-256 hex digest of cleaned document text.
// This is the dedup key: identical cleaned content always yields the same hash.
func ContentHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
