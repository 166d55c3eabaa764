// Package learn provides the persistent memory of the pipeline: learned
// food-name → cuisine aliases with rolling confidence, the oracle response
// cache, and the event deduplication index. All three live in one JSON
// document that is read in full at startup and rewritten in full on every
// mutation; at mailing-list scale (a few thousand entries) that is cheap, and
// the API hides the backing store so it can be swapped later.
package learn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/textnorm"
)

const schemaVersion = "1.0"

// Alias is a learned mapping from a normalized food name to a cuisine. The
// label tracks the most recent confident observation (deliberate recency
// bias); the accept/reject decision uses the smoothed rolling confidence.
type Alias struct {
	LastCuisine       string    `json:"last_cuisine"`
	RollingConfidence float64   `json:"rolling_confidence"`
	SampleCount       int       `json:"sample_count"`
	LastUpdated       time.Time `json:"last_updated"`
}

// CacheEntry memoizes one raw oracle payload.
type CacheEntry struct {
	Response  json.RawMessage `json:"response"`
	Timestamp time.Time       `json:"timestamp"`
}

// DedupEntry records the composite parts of a registered event alongside the
// identifier of the first event seen under that key, so the fuzzy matcher and
// the cleanup routine can read the parts back. Never mutated once created.
type DedupEntry struct {
	EventID   string `json:"event_id"`
	Title     string `json:"title"` // normalized
	DateStart string `json:"date_start"`
	TimeStart string `json:"time_start"` // normalized
	Location  string `json:"location"`   // normalized
}

type metadata struct {
	Created time.Time `json:"created"`
	Version string    `json:"version"`
}

type document struct {
	LearnedAliases map[string]*Alias     `json:"learned_aliases"`
	LLMCache       map[string]CacheEntry `json:"llm_cache"`
	EventDedup     map[string]DedupEntry `json:"event_dedup"`
	Metadata       metadata              `json:"metadata"`
}

// Stats summarizes store contents.
type Stats struct {
	LearnedAliases int `json:"learned_aliases"`
	CacheEntries   int `json:"cache_entries"`
	DedupEntries   int `json:"dedup_entries"`

	// Alias confidence distribution.
	HighConfidenceAliases   int `json:"high_confidence_aliases"`   // >= 0.8
	MediumConfidenceAliases int `json:"medium_confidence_aliases"` // [0.6, 0.8)
	LowConfidenceAliases    int `json:"low_confidence_aliases"`    // < 0.6
}

// Store owns the persisted document. All access is serialized by an internal
// mutex, so two food items with the same normalized name in one batch cannot
// lose an update.
type Store struct {
	mu   sync.Mutex
	path string
	doc  document

	alpha          float64
	aliasThreshold float64
	cacheTTL       time.Duration

	now func() time.Time

	// LoadWarning is set when a corrupt or unreadable store file degraded to
	// an empty store. Surfaced once by the caller; never fatal.
	LoadWarning string
}

// Open loads the store file at path, degrading to an empty store when the
// file is missing, unreadable, or corrupt.
func Open(path string, cfg config.Config) *Store {
	s := &Store{
		path:           path,
		alpha:          cfg.RollingAverageAlpha,
		aliasThreshold: cfg.AliasConfidenceThreshold,
		cacheTTL:       cfg.CacheTTL(),
		now:            time.Now,
	}
	s.doc = emptyDocument(s.now())

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.LoadWarning = fmt.Sprintf("could not read store %s: %v", path, err)
		}
		return s
	}
	var doc document
	if err := json.Unmarshal(b, &doc); err != nil {
		s.LoadWarning = fmt.Sprintf("corrupt store %s, starting empty: %v", path, err)
		return s
	}
	if doc.LearnedAliases == nil {
		doc.LearnedAliases = map[string]*Alias{}
	}
	if doc.LLMCache == nil {
		doc.LLMCache = map[string]CacheEntry{}
	}
	if doc.EventDedup == nil {
		doc.EventDedup = map[string]DedupEntry{}
	}
	s.doc = doc
	return s
}

func emptyDocument(now time.Time) document {
	return document{
		LearnedAliases: map[string]*Alias{},
		LLMCache:       map[string]CacheEntry{},
		EventDedup:     map[string]DedupEntry{},
		Metadata:       metadata{Created: now, Version: schemaVersion},
	}
}

// save rewrites the whole document. Callers hold s.mu.
func (s *Store) save() error {
	b, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("writing store %s: %w", s.path, err)
	}
	return nil
}

// GetLearnedCuisine returns the learned cuisine and rolling confidence for a
// food name, only when the current rolling confidence clears the alias
// threshold. A decayed-confidence alias is not surfaced even if a label
// exists.
func (s *Store) GetLearnedCuisine(name string) (string, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.doc.LearnedAliases[textnorm.Normalize(name)]
	if !ok || alias.RollingConfidence < s.aliasThreshold {
		return "", 0, false
	}
	return alias.LastCuisine, alias.RollingConfidence, true
}

// LearnCuisine records a confident cuisine observation for a food name.
// Observations below the alias threshold are a no-op: low-confidence calls
// must never pollute the learned mapping. Confidences are blended with an
// exponential moving average; the label always tracks the newest confident
// observation.
func (s *Store) LearnCuisine(name, cuisine string, confidence float64) error {
	if confidence < s.aliasThreshold {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := textnorm.Normalize(name)
	if key == "" {
		return nil
	}

	alias, ok := s.doc.LearnedAliases[key]
	if !ok {
		alias = &Alias{RollingConfidence: confidence}
		s.doc.LearnedAliases[key] = alias
	} else {
		alias.RollingConfidence = s.alpha*confidence + (1-s.alpha)*alias.RollingConfidence
	}
	alias.LastCuisine = cuisine
	alias.SampleCount++
	alias.LastUpdated = s.now()

	return s.save()
}

// GetCachedResponse returns the cached oracle payload for a key, lazily
// dropping entries older than the cache TTL.
func (s *Store) GetCachedResponse(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.doc.LLMCache[key]
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.Timestamp) > s.cacheTTL {
		delete(s.doc.LLMCache, key)
		_ = s.save() // pruning is advisory; a failed save only delays it
		return nil, false
	}
	return entry.Response, true
}

// CacheResponse stores a raw oracle payload under key, overwriting any
// previous entry (last write wins).
func (s *Store) CacheResponse(key string, response json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.LLMCache[key] = CacheEntry{Response: response, Timestamp: s.now()}
	return s.save()
}

// Cleanup removes cache and dedup entries older than maxAge. Learned aliases
// are accumulated knowledge and are never cleaned up. Returns the number of
// cache and dedup entries removed.
func (s *Store) Cleanup(maxAge time.Duration) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)

	removedCache := 0
	for key, entry := range s.doc.LLMCache {
		if entry.Timestamp.Before(cutoff) {
			delete(s.doc.LLMCache, key)
			removedCache++
		}
	}

	removedDedup := 0
	for key, entry := range s.doc.EventDedup {
		d, err := time.Parse("2006-01-02", entry.DateStart)
		if err != nil || d.Before(cutoff) {
			delete(s.doc.EventDedup, key)
			removedDedup++
		}
	}

	if removedCache > 0 || removedDedup > 0 {
		if err := s.save(); err != nil {
			return removedCache, removedDedup, err
		}
	}
	return removedCache, removedDedup, nil
}

// Stats reports store contents and the alias confidence distribution.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		LearnedAliases: len(s.doc.LearnedAliases),
		CacheEntries:   len(s.doc.LLMCache),
		DedupEntries:   len(s.doc.EventDedup),
	}
	for _, alias := range s.doc.LearnedAliases {
		switch {
		case alias.RollingConfidence >= 0.8:
			st.HighConfidenceAliases++
		case alias.RollingConfidence >= 0.6:
			st.MediumConfidenceAliases++
		default:
			st.LowConfidenceAliases++
		}
	}
	return st
}
