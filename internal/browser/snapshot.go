// internal/browser/snapshot.go
package browser

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Volatile substrings make two renders of the same page compare unequal.
// They are replaced with stable placeholders before any text is used for
// assertion, extraction storage, or hashing.
var volatilePatterns = []struct {
	re          *regexp.Regexp
	placeholder string
}{
	// ISO-8601 timestamps, with or without sub-second precision and zone.
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "<timestamp>"},
	// Clock times such as 14:03:59 or 2:03 PM.
	{regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[AaPp][Mm])?\b`), "<time>"},
	// UUIDs.
	{regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`), "<uuid>"},
	// Unix epochs, seconds or milliseconds.
	{regexp.MustCompile(`\b1\d{9}(?:\d{3})?\b`), "<epoch>"},
	// Long hex tokens (session ids, CSRF nonces, cache busters).
	{regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`), "<nonce>"},
}

// FilterVolatile replaces timestamps, nonces and similar run-dependent
// substrings so snapshots of the same page content compare equal across
// executions.
func FilterVolatile(s string) string {
	for _, p := range volatilePatterns {
		s = p.re.ReplaceAllString(s, p.placeholder)
	}
	return s
}

// SnapshotHash fingerprints page text after volatile filtering.
func SnapshotHash(s string) string {
	sum := sha256.Sum256([]byte(FilterVolatile(s)))
	return hex.EncodeToString(sum[:])
}
