package moderation

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/iamwavecut/ngguard/internal/utils/text"
)

// DefaultMarkers are link and invite fragments that count as advertising.
var DefaultMarkers = []string{
	"http",
	"https",
	"www",
	".com",
	".io",
	"t.me",
	"telegram.me",
	"telegram.dog",
}

// RuleSet is an immutable list of literal markers. Safe for concurrent use.
type RuleSet struct {
	markers       []string
	normalized    []string
	caseSensitive bool
}

func NewRuleSet(markers []string, caseSensitive bool) *RuleSet {
	rs := &RuleSet{caseSensitive: caseSensitive}
	seen := make(map[string]struct{}, len(markers))
	for _, marker := range markers {
		if strings.TrimSpace(marker) == "" {
			continue
		}
		n := rs.normalize(marker)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		rs.markers = append(rs.markers, marker)
		rs.normalized = append(rs.normalized, n)
	}
	return rs
}

// Matches reports whether any marker occurs in text, and the first one in rule order.
func (rs *RuleSet) Matches(content string) (bool, string) {
	if rs == nil || strings.TrimSpace(content) == "" {
		return false, ""
	}
	haystack := rs.normalize(content)
	for i, marker := range rs.normalized {
		if strings.Contains(haystack, marker) {
			return true, rs.markers[i]
		}
	}
	return false, ""
}

// Markers returns a copy of the configured markers.
func (rs *RuleSet) Markers() []string {
	out := make([]string, len(rs.markers))
	copy(out, rs.markers)
	return out
}

func (rs *RuleSet) normalize(s string) string {
	if rs.caseSensitive {
		return s
	}
	// Casers keep state, one per call.
	return text.FoldConfusables(cases.Fold().String(norm.NFKC.String(s)))
}
