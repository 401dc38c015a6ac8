package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns a stable hex digest of a template or document body.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
