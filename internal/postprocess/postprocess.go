// Package postprocess applies confidence thresholds to validated events and
// exchanges cuisine knowledge with the learning store: low-confidence labels
// are nulled, blanks are backfilled from learned aliases, and confident
// oracle observations are fed back so recurring food names stop needing the
// oracle at all.
package postprocess

import (
	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/event"
	"github.com/picnicd/picnic/internal/learn"
)

// Processor holds the thresholds and the learning store.
type Processor struct {
	cfg   config.Config
	store *learn.Store
}

// New returns a Processor.
func New(cfg config.Config, store *learn.Store) *Processor {
	return &Processor{cfg: cfg, store: store}
}

// Apply mutates the event in place. The event itself is always kept:
// category and cuisine are annotations, not gates for the whole record.
// Scores exactly at a threshold pass; only strictly-below is filtered.
func (p *Processor) Apply(ev *event.Event) {
	if ev.Category != "" {
		if c := ev.CategoryConfidence(); c >= 0 && c < p.cfg.MinCategoryConfidence {
			ev.Category = ""
		}
	}

	for i := range ev.Food {
		item := &ev.Food[i]

		if item.Cuisine != "" && item.CuisineConfidence != nil &&
			*item.CuisineConfidence < p.cfg.MinCuisineConfidence {
			item.Cuisine = ""
		}

		if item.Cuisine == "" {
			// The store only answers when its rolling confidence clears the
			// alias threshold, so a bare hit is trustworthy.
			if cuisine, _, ok := p.store.GetLearnedCuisine(item.Name); ok {
				item.Cuisine = cuisine
			}
			continue
		}

		// A surviving oracle-supplied cuisine with a reported score becomes a
		// learning observation. The store ignores anything below its own
		// threshold.
		if item.CuisineConfidence != nil && *item.CuisineConfidence >= p.cfg.MinCuisineConfidence {
			_ = p.store.LearnCuisine(item.Name, item.Cuisine, *item.CuisineConfidence)
		}
	}
}
