// Package hash computes the content digests used for duplicate detection.
// Two digests exist: a quick hash over at most the first MiB of a file
// (cheap pre-filter) and a full hash over the entire content (exact match).
// Both are SHA-256 hex strings.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// QuickWindow is the number of leading bytes covered by the quick hash.
const QuickWindow = 1 << 20 // 1 MiB

// Quick returns the SHA-256 of at most the first QuickWindow bytes read from r.
// For inputs of QuickWindow bytes or less, Quick(x) == Full(x).
func Quick(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.LimitReader(r, QuickWindow)); err != nil {
		return "", fmt.Errorf("hashing leading bytes: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Full returns the SHA-256 of the entire content read from r.
// The read is streamed, so memory use is bounded regardless of input size.
func Full(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
