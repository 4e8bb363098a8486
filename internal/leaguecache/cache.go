// Package leaguecache keeps a reverse index from teams to the leagues they
// play in, built from every enabled adapter's full team lists. The matcher
// uses it to shrink its search space before doing any per-league work, and
// group selectors like soccer_all expand through it. Rebuilds happen in a
// shadow structure and swap in atomically, so readers never block on a
// refresh.
package leaguecache

import (
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/provider/espn"
	"github.com/teamarr/teamarr/internal/sports"
)

// Candidate is one league where a team-name pair could resolve.
type Candidate struct {
	League   string
	Provider string
}

// snapshot is one immutable build of the index. Readers grab the pointer
// once and work off it; a concurrent rebuild swaps a new one in underneath.
type snapshot struct {
	builtAt  time.Time
	byLeague map[string][]sports.Team
	byKey    map[string][]string // teamKey -> sorted league slugs
}

func buildSnapshot(teams []sports.Team, builtAt time.Time) *snapshot {
	s := &snapshot{
		builtAt:  builtAt,
		byLeague: make(map[string][]sports.Team),
		byKey:    make(map[string][]string),
	}
	for _, t := range teams {
		s.byLeague[t.League] = append(s.byLeague[t.League], t)
		key := sports.TeamKey(t.Provider, t.ID)
		if !containsString(s.byKey[key], t.League) {
			s.byKey[key] = append(s.byKey[key], t.League)
		}
	}
	for key := range s.byKey {
		sort.Strings(s.byKey[key])
	}
	return s
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Cache is the process-wide team/league index. Safe for concurrent use.
type Cache struct {
	snap  atomic.Pointer[snapshot]
	store Store
	log   zerolog.Logger

	supports func(slug string) bool
	now      func() time.Time
}

// New builds an empty cache. store may be nil (no persistence). supports
// filters expansion and rebuild to leagues an enabled adapter covers.
func New(store Store, supports func(slug string) bool, log zerolog.Logger) *Cache {
	c := &Cache{
		store:    store,
		supports: supports,
		log:      log.With().Str("component", "leaguecache").Logger(),
		now:      time.Now,
	}
	c.snap.Store(buildSnapshot(nil, time.Time{}))
	return c
}

// BuiltAt returns when the current snapshot was built; zero when the cache
// has never been filled.
func (c *Cache) BuiltAt() time.Time {
	return c.snap.Load().builtAt
}

// TeamsForLeague returns the league's team universe from the current
// snapshot. Nil when the league is unknown.
func (c *Cache) TeamsForLeague(league string) []sports.Team {
	return c.snap.Load().byLeague[league]
}

// LeaguesForTeam returns every league the team participates in. A club in
// a domestic league and two cup competitions returns all three slugs.
func (c *Cache) LeaguesForTeam(teamKey string) []string {
	return c.snap.Load().byKey[teamKey]
}

// CandidateLeagues returns the leagues in which both names resolve to some
// team, sorted by slug. This is a prefilter: the matcher still runs its
// tiered match inside each candidate, so a loose name check here only costs
// a few extra candidates, never a wrong match.
func (c *Cache) CandidateLeagues(nameA, nameB string) []Candidate {
	snap := c.snap.Load()
	slugs := make([]string, 0, len(snap.byLeague))
	for slug := range snap.byLeague {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	var out []Candidate
	for _, slug := range slugs {
		teams := snap.byLeague[slug]
		if nameInTeams(nameA, teams) && nameInTeams(nameB, teams) {
			out = append(out, Candidate{League: slug, Provider: teams[0].Provider})
		}
	}
	return out
}

// ExpandGroups turns group selectors into concrete league slugs. soccer_all
// expands to the full soccer slug list; concrete slugs pass through when an
// enabled adapter covers them. Order is preserved, duplicates dropped.
func (c *Cache) ExpandGroups(selectors []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(slug string) {
		if !seen[slug] && (c.supports == nil || c.supports(slug)) {
			seen[slug] = true
			out = append(out, slug)
		}
	}
	for _, sel := range selectors {
		switch sel {
		case "soccer_all":
			for _, slug := range espn.SoccerLeagues() {
				add(slug)
			}
		default:
			add(sel)
		}
	}
	return out
}

// nameInTeams reports whether token plausibly names one of teams. Checks
// are deliberately loose: exact field equality, prefix either way, or
// whole-word containment against the canonical name.
func nameInTeams(token string, teams []sports.Team) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return false
	}
	for i := range teams {
		if nameMatchesTeam(token, &teams[i]) {
			return true
		}
	}
	return false
}

func nameMatchesTeam(token string, t *sports.Team) bool {
	fields := []string{t.Name, t.ShortName, t.Abbreviation, t.Slug, t.City}
	for _, f := range fields {
		f = strings.ToLower(f)
		if f == "" {
			continue
		}
		if f == token || strings.HasPrefix(f, token) || strings.HasPrefix(token, f) {
			return true
		}
	}
	return containsWord(strings.ToLower(t.Name), token) || containsWord(token, strings.ToLower(t.Name))
}

// containsWord reports whether needle occurs in haystack on word
// boundaries.
func containsWord(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	for _, w := range strings.Fields(haystack) {
		if w == needle {
			return true
		}
	}
	// Multi-word needle: substring match flanked by boundaries.
	idx := strings.Index(haystack, needle)
	for idx >= 0 {
		leftOK := idx == 0 || haystack[idx-1] == ' '
		end := idx + len(needle)
		rightOK := end == len(haystack) || haystack[end] == ' '
		if leftOK && rightOK {
			return true
		}
		next := strings.Index(haystack[idx+1:], needle)
		if next < 0 {
			break
		}
		idx += 1 + next
	}
	return false
}
