// Package textnorm provides the canonical text normalization used across the
// pipeline: gating keyword matching, food-name lookup keys, dedup keys, and
// cache keys all go through the same Normalize.
package textnorm

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var foldCaser = cases.Fold()

// Normalize canonicalizes text for case/diacritic/whitespace-insensitive
// comparison: Unicode NFKC, full case folding, whitespace runs collapsed to a
// single space, ends trimmed. Empty input yields the empty string. Idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = foldCaser.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// DedupeKey builds the deterministic primary key for event deduplication from
// the normalized title, the start date as-is, and the normalized start time
// and location.
func DedupeKey(title, dateStart, timeStart, location string) string {
	base := strings.Join([]string{
		Normalize(title),
		dateStart,
		Normalize(timeStart),
		Normalize(location),
	}, "|")
	return fmt.Sprintf("%x", sha256.Sum256([]byte(base)))
}

// CacheKey builds the oracle cache key from the message identity and a short
// content hash, so edited re-sends of the same message id miss the cache.
func CacheKey(messageID, body string) string {
	h := sha256.Sum256([]byte(body))
	return fmt.Sprintf("%s_%x", messageID, h[:8])
}
