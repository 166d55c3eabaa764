package event

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/textnorm"
)

// RejectError reports why a raw draft was rejected as a whole. Vocabulary
// violations never produce a RejectError; malformed dates, times, confidence
// scores, and a missing title do.
type RejectError struct {
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected: %s: %s", e.Field, e.Reason)
}

var (
	dateRE        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRE        = regexp.MustCompile(`^\d{2}:\d{2}$`)
	mailingListRE = regexp.MustCompile(`\[([^\]]+)\]`)
	dashRE        = regexp.MustCompile(`[\x{2013}\x{2014}]`) // en dash, em dash
	spaceRE       = regexp.MustCompile(`\s+`)
)

// placeholders the oracle emits where it means "absent". Consulted during
// typed parsing; matching values become true absence.
var placeholders = map[string]bool{
	"":     true,
	"TBD":  true,
	"N/A":  true,
	"-":    true,
	"null": true,
	"NULL": true,
	"None": true,
	"none": true,
}

// costKeywords signal a paid event. Free defaults to true in their absence.
var costKeywords = []string{
	"$", "ticket", "fee", "cost", "price", "charge",
	"payment", "buy", "purchase",
}

// Validator promotes raw oracle drafts into validated Events.
type Validator struct {
	cfg config.Config
}

// NewValidator returns a Validator bound to the given vocabularies.
func NewValidator(cfg config.Config) *Validator {
	return &Validator{cfg: cfg}
}

// Validate converts a raw draft into an Event, or returns a *RejectError
// naming the field that failed. Placeholder values become absence; values
// outside the category/cuisine vocabularies are nulled, never rejected.
func (v *Validator) Validate(raw *RawDraft, messageID, subject string) (*Event, error) {
	title := cleanText(deref(raw.Title))
	if textnorm.Normalize(title) == "" {
		return nil, &RejectError{Field: "title", Reason: "required, empty after normalization"}
	}

	ev := &Event{
		Title:           title,
		Description:     cleanText(deref(raw.Description)),
		Organizer:       cleanText(deref(raw.Organizer)),
		Timezone:        v.cfg.DefaultTimezone,
		SourceMessageID: messageID,
		SourceSubject:   subject,
		Free:            true,
	}

	if raw.Timezone != nil && !placeholders[strings.TrimSpace(*raw.Timezone)] {
		ev.Timezone = strings.TrimSpace(*raw.Timezone)
	}

	if d := deref(raw.DateStart); d != "" {
		if !dateRE.MatchString(d) {
			return nil, &RejectError{Field: "date_start", Reason: fmt.Sprintf("%q is not YYYY-MM-DD", d)}
		}
		ev.DateStart = d
	}
	for _, t := range []struct {
		name string
		raw  *string
		dst  *string
	}{
		{"time_start", raw.TimeStart, &ev.TimeStart},
		{"time_end", raw.TimeEnd, &ev.TimeEnd},
	} {
		if s := deref(t.raw); s != "" {
			if !timeRE.MatchString(s) {
				return nil, &RejectError{Field: t.name, Reason: fmt.Sprintf("%q is not HH:MM 24h", s)}
			}
			*t.dst = s
		}
	}

	ev.Location = cleanText(deref(raw.Location))
	ev.URLs = NormalizeURLs(raw.URLs)

	for _, rc := range raw.Contacts {
		c := Contact{Name: deref(rc.Name), Email: deref(rc.Email)}
		if c.Name == "" && c.Email == "" {
			continue
		}
		ev.Contacts = append(ev.Contacts, c)
	}

	// Category outside the vocabulary is silently nulled: vocabularies
	// evolve and the oracle may lag a config change.
	if cat := deref(raw.Category); cat != "" && v.cfg.HasCategory(cat) {
		ev.Category = cat
	}

	if raw.Confidence != nil {
		if err := checkScores(raw.Confidence); err != nil {
			return nil, err
		}
		ev.Confidence = raw.Confidence
	}

	for _, item := range raw.Food {
		name := textnorm.Normalize(deref(item.Name))
		if name == "" {
			continue // no extractable name, drop rather than keep a placeholder
		}
		fi := FoodItem{Name: name, QuantityHint: deref(item.QuantityHint)}
		if c := deref(item.Cuisine); c != "" && v.cfg.HasCuisine(c) {
			fi.Cuisine = c
		}
		if item.Confidence != nil {
			if err := checkScores(item.Confidence); err != nil {
				return nil, err
			}
			fi.CuisineConfidence = item.Confidence.Cuisine
		}
		ev.Food = append(ev.Food, fi)
	}

	if raw.Free != nil {
		ev.Free = *raw.Free
	}

	if ml := deref(raw.MailingList); ml != "" {
		ev.MailingList = ml
	} else if m := mailingListRE.FindStringSubmatch(subject); m != nil {
		ev.MailingList = m[1]
	}

	return ev, nil
}

// DetectFree reports whether the announcement looks free of charge: true
// unless a cost keyword appears.
func DetectFree(text string) bool {
	lower := textnorm.Normalize(text)
	for _, kw := range costKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// ExtractMailingList pulls the first [TAG] bracket pattern from a subject.
func ExtractMailingList(subject string) string {
	if m := mailingListRE.FindStringSubmatch(subject); m != nil {
		return m[1]
	}
	return ""
}

func checkScores(c *Confidence) error {
	for name, p := range map[string]*float64{
		"category": c.Category,
		"cuisine":  c.Cuisine,
		"overall":  c.Overall,
	} {
		if p != nil && (*p < 0 || *p > 1) {
			return &RejectError{
				Field:  "confidence." + name,
				Reason: fmt.Sprintf("%v outside [0,1]", *p),
			}
		}
	}
	return nil
}

// deref resolves an optional string, mapping placeholder values to absence.
func deref(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	if placeholders[s] {
		return ""
	}
	return s
}

// cleanText replaces en/em dashes with plain hyphens and collapses internal
// whitespace runs, preserving case.
func cleanText(s string) string {
	if s == "" {
		return ""
	}
	s = dashRE.ReplaceAllString(s, "-")
	return strings.TrimSpace(spaceRE.ReplaceAllString(s, " "))
}
