// Package query implements the execution layer for igloo-mcp: statement
// fingerprinting, delegation to the Snowflake CLI, and the cache-aware
// execution service that ties the runner to the result cache.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a stable SHA-256 digest of a statement's
// normalized text. Normalization collapses runs of whitespace and strips
// a trailing semicolon, so formatting-only variants of a statement share
// a fingerprint. Case is preserved: folding it would merge statements
// that differ only inside string literals, which are distinct queries.
func Fingerprint(statement string) string {
	normalized := strings.Join(strings.Fields(statement), " ")
	normalized = strings.TrimSuffix(normalized, ";")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
