package matcher

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/leaguecache"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/sports"
)

// NoMatchReason classifies why a stream could not be resolved. Unmatched
// input is an expected outcome, never an error.
type NoMatchReason string

const (
	ReasonNoIndicator       NoMatchReason = "no_indicator"
	ReasonUnknownTeam       NoMatchReason = "unknown_team"
	ReasonNoCandidateLeague NoMatchReason = "no_candidate_league"
	ReasonNoEventFound      NoMatchReason = "no_event_found"
	ReasonAmbiguous         NoMatchReason = "ambiguous"
)

// Segment marks which part of a split card a stream covers.
type Segment string

const (
	SegmentNone    Segment = ""
	SegmentPrelims Segment = "prelims"
	SegmentMain    Segment = "main"
)

// Result is the outcome of one match attempt.
type Result struct {
	Matched    bool
	EventID    string
	League     string
	Confidence float64
	Segment    Segment

	// Orientation of the matched sides relative to the event. True when the
	// stream's order agreed with the event's home/away assignment.
	OrientationAgrees bool

	// FromCache marks fingerprint-cache hits.
	FromCache bool

	Reason NoMatchReason
	Side   string // which side failed for unknown_team: "left" or "right"
}

func noMatch(reason NoMatchReason) Result { return Result{Reason: reason} }

// Stream is one raw playlist entry to be matched.
type Stream struct {
	GroupID  string
	StreamID string
	Name     string
}

// Group carries the event group's matching configuration.
type Group struct {
	ID string
	// Leagues is the explicit candidate set; empty means derive candidates
	// from the team/league cache. May contain the soccer_all selector.
	Leagues      []string
	IncludeFinal bool
}

// Config tunes the matcher.
type Config struct {
	MatchDaysAhead int
	Timezone       *time.Location
	RegionTokens   []string // nil = DefaultRegionTokens
}

// AliasSource resolves user-defined aliases for one league: normalised
// alias text to team id.
type AliasSource interface {
	Aliases(league string) map[string]string
}

// Matcher resolves stream names to events. Safe for concurrent use; the
// fingerprint cache serialises its own writes.
type Matcher struct {
	cache   *leaguecache.Cache
	data    DataSource
	aliases AliasSource
	norm    *Normalizer
	fps     *fingerprintCache
	cfg     Config
	log     zerolog.Logger

	now func() time.Time
}

// New builds a matcher. aliases may be nil.
func New(cache *leaguecache.Cache, data DataSource, aliases AliasSource, cfg Config, log zerolog.Logger) *Matcher {
	if cfg.MatchDaysAhead <= 0 {
		cfg.MatchDaysAhead = 7
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Matcher{
		cache:   cache,
		data:    data,
		aliases: aliases,
		norm:    NewNormalizer(cfg.RegionTokens),
		fps:     newFingerprintCache(),
		cfg:     cfg,
		log:     log.With().Str("component", "matcher").Logger(),
		now:     time.Now,
	}
}

// LoadCache restores persisted fingerprint entries. Called once at startup.
func (m *Matcher) LoadCache(store FingerprintStore) error {
	entries, err := store.LoadMatchCache()
	if err != nil {
		return err
	}
	m.fps.load(entries)
	return nil
}

// FlushCache purges stale entries for generation and persists the rest.
// Called at the end of a run.
func (m *Matcher) FlushCache(store FingerprintStore, generation uint64) error {
	removed := m.fps.purge(generation)
	if removed > 0 {
		m.log.Debug().Int("removed", removed).Msg("purged stale fingerprint entries")
	}
	return store.SaveMatchCache(m.fps.snapshot())
}

// CacheSize returns the live fingerprint entry count, for run reporting.
func (m *Matcher) CacheSize() int { return m.fps.len() }

// Match resolves one stream. generation is the current run's counter; it
// stamps fingerprint entries for staleness tracking.
func (m *Matcher) Match(ctx context.Context, stream Stream, group Group, generation uint64) (Result, error) {
	fp := Fingerprint(stream.GroupID, stream.StreamID, stream.Name)
	if e, ok := m.fps.get(fp, generation); ok {
		metrics.MatchFingerprintHits.Inc()
		metrics.MatchAttempts.WithLabelValues("cache_hit").Inc()
		return Result{
			Matched:    true,
			EventID:    e.EventID,
			League:     e.League,
			Confidence: e.Confidence,
			Segment:    e.Segment,
			FromCache:  true,
		}, nil
	}

	res, err := m.matchFull(ctx, stream, group)
	if err != nil {
		return Result{}, err
	}
	if res.Matched {
		m.fps.put(CacheEntry{
			Fingerprint:        fp,
			EventID:            res.EventID,
			League:             res.League,
			Confidence:         res.Confidence,
			Segment:            res.Segment,
			LastSeenGeneration: generation,
		})
		metrics.MatchAttempts.WithLabelValues("matched").Inc()
	} else {
		metrics.MatchAttempts.WithLabelValues(string(res.Reason)).Inc()
	}
	return res, nil
}

func (m *Matcher) matchFull(ctx context.Context, stream Stream, group Group) (Result, error) {
	norm := m.norm.Normalize(stream.Name)
	left, right, ind, hasIndicator := splitIndicator(norm.Text)
	if !hasIndicator {
		return m.matchSingleEvent(ctx, norm, group)
	}

	leagues := m.candidateLeagues(left, right, group)
	if len(leagues) == 0 {
		return noMatch(ReasonNoCandidateLeague), nil
	}

	pairs := m.matchPairs(left, right, leagues)
	if len(pairs) == 0 {
		// Distinguish which side failed in the best league for reporting.
		res := noMatch(ReasonUnknownTeam)
		res.Side = m.failedSide(left, right, leagues)
		return res, nil
	}

	// Highest combined confidence first; event resolution walks the list
	// and the first league producing an event wins. Equal-confidence ties
	// prefer orientation agreement, then group league order.
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].confidence() > pairs[j].confidence()
	})

	var best *Result
	for i := range pairs {
		p := &pairs[i]
		if best != nil && p.confidence() < best.Confidence {
			break
		}
		ev, err := m.resolveEvent(ctx, p.a.Team, p.b.Team, p.league, norm, group.IncludeFinal)
		if err != nil {
			return Result{}, err
		}
		if ev == nil {
			continue
		}
		agrees := orientationAgrees(ev, p, ind)
		r := Result{
			Matched:           true,
			EventID:           ev.ID,
			League:            p.league,
			Confidence:        p.confidence(),
			OrientationAgrees: agrees,
		}
		if best == nil || (agrees && !best.OrientationAgrees) {
			best = &r
		}
		if best.OrientationAgrees {
			break
		}
	}
	if best == nil {
		return noMatch(ReasonNoEventFound), nil
	}
	return *best, nil
}

// leaguePair is a successful both-sides resolution inside one league.
type leaguePair struct {
	league string
	order  int // index in the group's configured league order
	a, b   teamMatch
}

func (p *leaguePair) confidence() float64 {
	return (p.a.Confidence + p.b.Confidence) / 2
}

func (m *Matcher) candidateLeagues(left, right string, group Group) []string {
	if len(group.Leagues) > 0 {
		return m.cache.ExpandGroups(group.Leagues)
	}
	cands := m.cache.CandidateLeagues(left, right)
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.League
	}
	return out
}

func (m *Matcher) matchPairs(left, right string, leagues []string) []leaguePair {
	var pairs []leaguePair
	for order, league := range leagues {
		teams := m.cache.TeamsForLeague(league)
		if len(teams) == 0 {
			continue
		}
		aliases := m.leagueAliases(league)
		a, okA := matchTeamInLeague(left, teams, aliases)
		if !okA {
			continue
		}
		b, okB := matchTeamInLeague(right, teams, aliases)
		if !okB || a.Team.ID == b.Team.ID {
			continue
		}
		pairs = append(pairs, leaguePair{league: league, order: order, a: a, b: b})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].order < pairs[j].order })
	return pairs
}

func (m *Matcher) leagueAliases(league string) map[string]string {
	if m.aliases == nil {
		return nil
	}
	return m.aliases.Aliases(league)
}

// failedSide reports which side could not be resolved anywhere, for the
// unknown_team reason.
func (m *Matcher) failedSide(left, right string, leagues []string) string {
	for _, league := range leagues {
		teams := m.cache.TeamsForLeague(league)
		aliases := m.leagueAliases(league)
		if _, ok := matchTeamInLeague(left, teams, aliases); !ok {
			return "left"
		}
		if _, ok := matchTeamInLeague(right, teams, aliases); !ok {
			return "right"
		}
	}
	return "left"
}

// orientationAgrees checks the stream's side order against the event:
// "away at home" puts the away side left; "home versus away" puts home
// left.
func orientationAgrees(ev *sports.Event, p *leaguePair, ind Indicator) bool {
	switch ind {
	case IndicatorAt:
		return ev.Away.ID == p.a.Team.ID && ev.Home.ID == p.b.Team.ID
	default:
		return ev.Home.ID == p.a.Team.ID && ev.Away.ID == p.b.Team.ID
	}
}

// singleEventKeywords mark streams as belonging to a league that holds at
// most one event per day, letting them match without two team names.
var singleEventKeywords = map[string][]string{
	"ufc":       {"ufc", "fight night"},
	"pga":       {"pga"},
	"f1":        {"f1", "formula 1", "grand prix"},
	"atp":       {"atp"},
	"boxing":    {"boxing"},
	"darts.pdc": {"darts", "pdc"},
}

// matchSingleEvent handles non-matchup streams: league-identifying keywords
// plus exactly one event in the lookahead window. Prelim/main keywords are
// recorded so the programme builder can split the card.
func (m *Matcher) matchSingleEvent(ctx context.Context, norm Normalized, group Group) (Result, error) {
	leagues := group.Leagues
	if len(leagues) == 0 {
		for slug := range singleEventKeywords {
			leagues = append(leagues, slug)
		}
		sort.Strings(leagues)
	}

	for _, league := range leagues {
		keywords, ok := singleEventKeywords[league]
		if !ok {
			continue
		}
		if !anyKeyword(norm.Text, keywords) {
			continue
		}
		ev, ambiguous, err := m.soleEvent(ctx, league, group.IncludeFinal)
		if err != nil {
			return Result{}, err
		}
		if ambiguous {
			return noMatch(ReasonAmbiguous), nil
		}
		if ev == nil {
			return noMatch(ReasonNoEventFound), nil
		}
		return Result{
			Matched:    true,
			EventID:    ev.ID,
			League:     league,
			Confidence: confWholeWord,
			Segment:    detectSegment(norm.Text),
		}, nil
	}
	return noMatch(ReasonNoIndicator), nil
}

// soleEvent returns the league's single event on the first day in the
// lookahead window that has any. More than one event on that day is
// ambiguous: keywords alone cannot pick between them.
func (m *Matcher) soleEvent(ctx context.Context, league string, includeFinal bool) (*sports.Event, bool, error) {
	today := m.now().UTC().Truncate(24 * time.Hour)
	for d := 0; d <= m.cfg.MatchDaysAhead; d++ {
		events, err := m.data.Events(ctx, league, today.AddDate(0, 0, d))
		if err != nil {
			return nil, false, err
		}
		var live []sports.Event
		for _, e := range events {
			if e.Status == sports.StatusFinal && !includeFinal {
				continue
			}
			live = append(live, e)
		}
		if len(live) == 1 {
			return &live[0], false, nil
		}
		if len(live) > 1 {
			return nil, true, nil
		}
	}
	return nil, false, nil
}

func anyKeyword(text string, keywords []string) bool {
	for _, k := range keywords {
		if wordContained(text, k) {
			return true
		}
	}
	return false
}

func detectSegment(text string) Segment {
	switch {
	case strings.Contains(text, "prelim"):
		return SegmentPrelims
	case wordContained(text, "main") || strings.Contains(text, "main card"):
		return SegmentMain
	default:
		return SegmentNone
	}
}
