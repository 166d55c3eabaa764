// Package gate implements the cheap event-likeness filter that runs before
// any oracle call. It is a pure boolean heuristic with no state and no
// learning. A message rejected here is never seen by the oracle — that recall
// loss is the accepted price of cost control.
package gate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/picnicd/picnic/internal/config"
	"github.com/picnicd/picnic/internal/textnorm"
)

// Filter decides whether a message plausibly announces an event.
type Filter struct {
	minBodyLen   int
	shortBodyLen int
	keywords     []string
	locations    []string
	timeRes      []*regexp.Regexp
}

// New compiles the configured time patterns and returns a Filter.
func New(cfg config.Config) (*Filter, error) {
	f := &Filter{
		minBodyLen:   cfg.MinBodyLength,
		shortBodyLen: cfg.ShortBodyLength,
	}
	for _, kw := range cfg.EventKeywords {
		f.keywords = append(f.keywords, textnorm.Normalize(kw))
	}
	for _, kw := range cfg.LocationKeywords {
		f.locations = append(f.locations, textnorm.Normalize(kw))
	}
	for _, p := range cfg.TimePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compiling time pattern %q: %w", p, err)
		}
		f.timeRes = append(f.timeRes, re)
	}
	return f, nil
}

// IsEventLike reports whether the message deserves an oracle call.
//
// Order matters: length gate first, then the subject-keyword override (subject
// keywords are a strong signal on mailing lists and skip the footer check),
// then the short-body mailing-list-footer rejection, then body keywords or the
// time-pattern + location-keyword combination.
func (f *Filter) IsEventLike(body, subject string) bool {
	bodyNorm := textnorm.Normalize(body)
	// Thresholds are in characters, not bytes; multi-byte text must not
	// clear the gates early.
	bodyLen := utf8.RuneCountInString(bodyNorm)
	if bodyLen < f.minBodyLen {
		return false
	}
	subjectNorm := textnorm.Normalize(subject)

	subjectHasKeyword := containsAny(subjectNorm, f.keywords)
	if subjectHasKeyword {
		return true
	}

	// Short bodies mentioning "mailing list" are almost always automated
	// footers, not event content.
	if bodyLen < f.shortBodyLen && strings.Contains(bodyNorm, "mailing list") {
		return false
	}

	if containsAny(bodyNorm, f.keywords) {
		return true
	}

	hasTime := false
	for _, re := range f.timeRes {
		if re.MatchString(bodyNorm) {
			hasTime = true
			break
		}
	}
	return hasTime && containsAny(bodyNorm, f.locations)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
