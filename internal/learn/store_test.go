package learn

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/picnicd/picnic/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "store.json"), config.Default())
}

func TestLearnCuisineFirstObservation(t *testing.T) {
	s := newTestStore(t)

	if err := s.LearnCuisine("Pizza", "Italian", 0.9); err != nil {
		t.Fatalf("LearnCuisine: %v", err)
	}

	cuisine, conf, ok := s.GetLearnedCuisine("pizza")
	if !ok {
		t.Fatal("expected a learned cuisine")
	}
	if cuisine != "Italian" {
		t.Errorf("cuisine = %q", cuisine)
	}
	if conf != 0.9 {
		t.Errorf("confidence = %v, want 0.9", conf)
	}
}

func TestLearnCuisineLookupIsNormalized(t *testing.T) {
	s := newTestStore(t)
	if err := s.LearnCuisine("  Pizza  ", "Italian", 0.85); err != nil {
		t.Fatalf("LearnCuisine: %v", err)
	}
	if _, _, ok := s.GetLearnedCuisine("PIZZA "); !ok {
		t.Error("case/whitespace variant should hit the same alias")
	}
}

func TestLearnCuisineRollingAverage(t *testing.T) {
	s := newTestStore(t)

	if err := s.LearnCuisine("pizza", "Italian", 0.9); err != nil {
		t.Fatalf("LearnCuisine: %v", err)
	}
	if err := s.LearnCuisine("pizza", "Italian", 0.8); err != nil {
		t.Fatalf("LearnCuisine: %v", err)
	}

	// alpha=0.3: 0.3*0.8 + 0.7*0.9 = 0.87
	_, conf, ok := s.GetLearnedCuisine("pizza")
	if !ok {
		t.Fatal("expected a learned cuisine")
	}
	if conf < 0.8699 || conf > 0.8701 {
		t.Errorf("rolling confidence = %v, want 0.87", conf)
	}
}

func TestLearnCuisineLabelRecency(t *testing.T) {
	s := newTestStore(t)
	if err := s.LearnCuisine("dumplings", "Chinese", 0.9); err != nil {
		t.Fatal(err)
	}
	if err := s.LearnCuisine("dumplings", "Taiwanese", 0.8); err != nil {
		t.Fatal(err)
	}
	cuisine, _, ok := s.GetLearnedCuisine("dumplings")
	if !ok || cuisine != "Taiwanese" {
		t.Errorf("label should track the newest confident observation, got %q ok=%v", cuisine, ok)
	}
}

func TestLearnCuisineLowConfidenceIsNoop(t *testing.T) {
	s := newTestStore(t)
	if err := s.LearnCuisine("mystery stew", "Other", 0.3); err != nil {
		t.Fatalf("LearnCuisine: %v", err)
	}
	if _, _, ok := s.GetLearnedCuisine("mystery stew"); ok {
		t.Error("low-confidence observation must not create an alias")
	}
	if st := s.Stats(); st.LearnedAliases != 0 {
		t.Errorf("aliases = %d, want 0", st.LearnedAliases)
	}
}

func TestGetLearnedCuisineBelowThresholdHidden(t *testing.T) {
	s := newTestStore(t)
	// Plant an alias whose rolling confidence sits below the 0.7 threshold.
	s.doc.LearnedAliases["bread"] = &Alias{LastCuisine: "European", RollingConfidence: 0.65}
	if _, _, ok := s.GetLearnedCuisine("bread"); ok {
		t.Error("alias below the confidence threshold must not be surfaced")
	}
}

func TestCacheRoundTripAndExpiry(t *testing.T) {
	s := newTestStore(t)

	payload := json.RawMessage(`{"title":"Pizza Night"}`)
	if err := s.CacheResponse("msg-1_abcd", payload); err != nil {
		t.Fatalf("CacheResponse: %v", err)
	}

	got, ok := s.GetCachedResponse("msg-1_abcd")
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if string(got) != string(payload) {
		t.Errorf("payload = %s", got)
	}

	// Move the clock past the TTL; the entry must lazily expire.
	s.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	if _, ok := s.GetCachedResponse("msg-1_abcd"); ok {
		t.Error("expected the entry to be expired")
	}
	if st := s.Stats(); st.CacheEntries != 0 {
		t.Errorf("expired entry not pruned, cache entries = %d", st.CacheEntries)
	}
}

func TestOpenMissingFile(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "nope", "store.json"), config.Default())
	if s.LoadWarning != "" {
		t.Errorf("a missing file is normal, got warning %q", s.LoadWarning)
	}
	if st := s.Stats(); st.LearnedAliases != 0 || st.CacheEntries != 0 || st.DedupEntries != 0 {
		t.Errorf("expected an empty store, got %+v", st)
	}
}

func TestOpenCorruptFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := Open(path, config.Default())
	if s.LoadWarning == "" {
		t.Error("corrupt file should set a load warning")
	}
	// The store must still work.
	if err := s.LearnCuisine("pizza", "Italian", 0.9); err != nil {
		t.Fatalf("store unusable after corrupt load: %v", err)
	}
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	cfg := config.Default()

	s1 := Open(path, cfg)
	if err := s1.LearnCuisine("pizza", "Italian", 0.9); err != nil {
		t.Fatal(err)
	}
	if err := s1.RegisterEvent("ev-1", "Pizza Night", "2025-09-19", "19:00", "Common Room"); err != nil {
		t.Fatal(err)
	}

	s2 := Open(path, cfg)
	if _, _, ok := s2.GetLearnedCuisine("pizza"); !ok {
		t.Error("alias lost across reopen")
	}
	if _, ok := s2.FindDuplicate("Pizza Night", "2025-09-19", "19:00", "Common Room"); !ok {
		t.Error("dedup entry lost across reopen")
	}
}

func TestCleanupPreservesAliases(t *testing.T) {
	s := newTestStore(t)

	if err := s.LearnCuisine("pizza", "Italian", 0.9); err != nil {
		t.Fatal(err)
	}
	if err := s.CacheResponse("old-key", json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterEvent("ev-1", "Old Event", "2020-01-01", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterEvent("ev-2", "Future Event", "2999-01-01", "", ""); err != nil {
		t.Fatal(err)
	}

	// Everything cached so far is "old" relative to a clock 60 days ahead.
	s.now = func() time.Time { return time.Now().Add(60 * 24 * time.Hour) }
	cacheRemoved, dedupRemoved, err := s.Cleanup(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if cacheRemoved != 1 {
		t.Errorf("cacheRemoved = %d, want 1", cacheRemoved)
	}
	if dedupRemoved != 1 {
		t.Errorf("dedupRemoved = %d, want 1 (only the 2020 event)", dedupRemoved)
	}

	st := s.Stats()
	if st.LearnedAliases != 1 {
		t.Errorf("aliases must survive cleanup, got %d", st.LearnedAliases)
	}
	if st.DedupEntries != 1 {
		t.Errorf("future dedup entry removed, entries = %d", st.DedupEntries)
	}
}

func TestStatsConfidenceBands(t *testing.T) {
	s := newTestStore(t)
	s.doc.LearnedAliases["a"] = &Alias{RollingConfidence: 0.95}
	s.doc.LearnedAliases["b"] = &Alias{RollingConfidence: 0.7}
	s.doc.LearnedAliases["c"] = &Alias{RollingConfidence: 0.4}

	st := s.Stats()
	if st.HighConfidenceAliases != 1 || st.MediumConfidenceAliases != 1 || st.LowConfidenceAliases != 1 {
		t.Errorf("bands = %d/%d/%d, want 1/1/1",
			st.HighConfidenceAliases, st.MediumConfidenceAliases, st.LowConfidenceAliases)
	}
}
