package event

import (
	"regexp"
	"strings"
)

var (
	schemeRE     = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	domainLikeRE = regexp.MustCompile(`^[\w.-]+\.[a-zA-Z]{2,}(/.*)?$`)
	trackingRE   = regexp.MustCompile(`[?&](utm_[^&]*|fbclid|gclid|ref)=[^&]*`)
	trailingRE   = regexp.MustCompile(`[?&]$`)
)

// NormalizeURLs cleans a list of URL-ish strings: tracking parameters are
// stripped, bare domains get an https:// scheme, and anything that doesn't
// look like a URL (no dot, or too short) is dropped rather than guessed at.
// Duplicates are removed, first occurrence wins.
func NormalizeURLs(urls []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, u := range urls {
		v := NormalizeURL(u)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// NormalizeURL cleans a single URL string, returning "" when the input is not
// URL-like.
func NormalizeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || placeholders[u] {
		return ""
	}
	if !schemeRE.MatchString(u) {
		if !domainLikeRE.MatchString(u) {
			return ""
		}
		u = "https://" + u
	}
	if !strings.Contains(u, ".") || len(u) <= 3 {
		return ""
	}
	u = trackingRE.ReplaceAllString(u, "")
	u = trailingRE.ReplaceAllString(u, "")
	// Stripping the first parameter can leave "&rest" without a "?".
	if !strings.Contains(u, "?") && strings.Contains(u, "&") {
		u = strings.Replace(u, "&", "?", 1)
	}
	return u
}
