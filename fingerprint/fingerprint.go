// Package fingerprint provides content-addressed deduplication: a stable hash
// over canonicalized content plus an atomic claim table that guarantees exactly
// one embedding call per distinct fingerprint under concurrent ingestion.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Normalize canonicalizes content before fingerprinting.
//
// Policy: leading/trailing whitespace is trimmed and CRLF/CR line endings
// collapse to LF. Content is otherwise byte-exact; no case folding, no Unicode
// normalization. Paraphrases never share a fingerprint.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	return strings.TrimSpace(content)
}

// Sum returns the hex-encoded SHA-256 fingerprint of the normalized content.
func Sum(content string) string {
	h := sha256.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(h[:])
}

// SumPrepared returns the fingerprint of content that has already been
// normalized (and possibly truncated). It skips re-normalization.
func SumPrepared(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
