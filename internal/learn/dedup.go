package learn

import (
	"time"

	"github.com/picnicd/picnic/internal/textnorm"
)

const (
	titleSimilarityThreshold    = 0.9
	locationSimilarityThreshold = 0.8
	maxDateDriftDays            = 1
)

// FindDuplicate reports whether an event with the given composite parts is
// the same real-world event as one already registered. Exact key match wins
// immediately; otherwise a linear fuzzy scan compares normalized titles,
// date proximity, and (when both sides have one) locations. Linear scan is
// fine at mailing-list volume; this is not built for n beyond a few thousand.
func (s *Store) FindDuplicate(title, dateStart, timeStart, location string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := textnorm.DedupeKey(title, dateStart, timeStart, location)
	if entry, ok := s.doc.EventDedup[key]; ok {
		return entry.EventID, true
	}

	titleNorm := textnorm.Normalize(title)
	locNorm := textnorm.Normalize(location)

	for _, entry := range s.doc.EventDedup {
		if Similarity(titleNorm, entry.Title) < titleSimilarityThreshold {
			continue
		}
		if !datesWithin(dateStart, entry.DateStart, maxDateDriftDays) {
			continue
		}
		// Missing locations never block a match: absence of data the oracle
		// never extracted is not evidence of a different venue.
		if locNorm != "" && entry.Location != "" &&
			Similarity(locNorm, entry.Location) < locationSimilarityThreshold {
			continue
		}
		return entry.EventID, true
	}
	return "", false
}

// RegisterEvent records a novel event under its primary key. Entries are
// created once and only matched against afterwards.
func (s *Store) RegisterEvent(eventID, title, dateStart, timeStart, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := textnorm.DedupeKey(title, dateStart, timeStart, location)
	s.doc.EventDedup[key] = DedupEntry{
		EventID:   eventID,
		Title:     textnorm.Normalize(title),
		DateStart: dateStart,
		TimeStart: textnorm.Normalize(timeStart),
		Location:  textnorm.Normalize(location),
	}
	return s.save()
}

// datesWithin reports whether two YYYY-MM-DD dates are at most driftDays
// apart. Dates that fail to parse disqualify the pair.
func datesWithin(a, b string, driftDays int) bool {
	da, err := time.Parse("2006-01-02", a)
	if err != nil {
		return false
	}
	db, err := time.Parse("2006-01-02", b)
	if err != nil {
		return false
	}
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(driftDays)*24*time.Hour
}
