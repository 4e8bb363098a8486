package matcher

import (
	"regexp"
	"strings"

	"github.com/teamarr/teamarr/internal/sports"
)

// Tiered team-match confidences. First tier to succeed wins.
const (
	confAlias      = 1.00
	confExact      = 1.00
	confYearStrip  = 0.95
	confPrefix     = 0.90
	confWholeWord  = 0.85
	confWordSet    = 0.75
	wordSetCutoff  = 0.6
	minPrefixChars = 3
)

var trailingNumRe = regexp.MustCompile(`\s+\d{2,4}$`)

// teamMatch is one side's resolution inside a league.
type teamMatch struct {
	Team       sports.Team
	Confidence float64
}

// matchTeamInLeague resolves token against the league's team universe.
// User aliases are checked before tier 1 and carry full confidence; they
// are keyed by normalised alias text within the league.
func matchTeamInLeague(token string, teams []sports.Team, aliases map[string]string) (teamMatch, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return teamMatch{}, false
	}

	if id, ok := aliases[token]; ok {
		for i := range teams {
			if teams[i].ID == id {
				return teamMatch{Team: teams[i], Confidence: confAlias}, true
			}
		}
	}

	type tierFn func(token string, t *sports.Team) bool
	tiers := []struct {
		check tierFn
		conf  float64
	}{
		{tierExact, confExact},
		{tierYearStrip, confYearStrip},
		{tierPrefix, confPrefix},
		{tierWholeWord, confWholeWord},
		{tierWordSet, confWordSet},
	}
	for _, tier := range tiers {
		for i := range teams {
			if tier.check(token, &teams[i]) {
				return teamMatch{Team: teams[i], Confidence: tier.conf}, true
			}
		}
	}
	return teamMatch{}, false
}

func tier1Fields(t *sports.Team) []string {
	return []string{
		strings.ToLower(t.Name),
		strings.ToLower(t.ShortName),
		strings.ToLower(t.Abbreviation),
		strings.ToLower(t.Slug),
		strings.ToLower(t.City),
	}
}

func tierExact(token string, t *sports.Team) bool {
	for _, f := range tier1Fields(t) {
		if f != "" && f == token {
			return true
		}
	}
	return false
}

// tierYearStrip equates "fc heidenheim 1846" with "fc heidenheim": trailing
// year/number suffixes are club-name decoration, not identity.
func tierYearStrip(token string, t *sports.Team) bool {
	stripped := trailingNumRe.ReplaceAllString(token, "")
	for _, f := range tier1Fields(t) {
		if f == "" {
			continue
		}
		fs := trailingNumRe.ReplaceAllString(f, "")
		if fs == token || fs == stripped || f == stripped {
			return true
		}
	}
	return false
}

func tierPrefix(token string, t *sports.Team) bool {
	if len(token) < minPrefixChars {
		return false
	}
	for _, f := range tier1Fields(t) {
		if len(f) < minPrefixChars {
			continue
		}
		if strings.HasPrefix(f, token) || strings.HasPrefix(token, f) {
			return true
		}
	}
	return false
}

func tierWholeWord(token string, t *sports.Team) bool {
	for _, f := range tier1Fields(t) {
		if f == "" {
			continue
		}
		if wordContained(f, token) || wordContained(token, f) {
			return true
		}
	}
	return false
}

// tierWordSet accepts when ≥60% of the canonical name's words appear in the
// token (or the reverse). Catches reorderings like "united manchester".
func tierWordSet(token string, t *sports.Team) bool {
	name := strings.ToLower(t.Name)
	return wordOverlap(token, name) >= wordSetCutoff
}

// wordContained reports whether needle appears in haystack on word
// boundaries.
func wordContained(haystack, needle string) bool {
	if needle == "" || len(needle) > len(haystack) {
		return false
	}
	idx := 0
	for {
		i := strings.Index(haystack[idx:], needle)
		if i < 0 {
			return false
		}
		i += idx
		end := i + len(needle)
		leftOK := i == 0 || haystack[i-1] == ' '
		rightOK := end == len(haystack) || haystack[end] == ' '
		if leftOK && rightOK {
			return true
		}
		idx = i + 1
	}
}

// wordOverlap is |words(a) ∩ words(b)| over the smaller word set.
func wordOverlap(a, b string) float64 {
	wa := strings.Fields(a)
	wb := strings.Fields(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	common := 0
	for _, w := range wb {
		if set[w] {
			common++
		}
	}
	n := len(wa)
	if len(wb) < n {
		n = len(wb)
	}
	return float64(common) / float64(n)
}
