package matcher

import (
	"context"
	"time"

	"github.com/teamarr/teamarr/internal/provider/espn"
	"github.com/teamarr/teamarr/internal/sports"
)

// DataSource is the slice of the data service the matcher needs.
type DataSource interface {
	Events(ctx context.Context, league string, date time.Time) ([]sports.Event, error)
	TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error)
}

// statusRank orders event statuses for tie-breaking: live beats scheduled
// beats everything else.
func statusRank(s sports.EventStatus) int {
	switch s {
	case sports.StatusInProgress:
		return 2
	case sports.StatusScheduled:
		return 1
	default:
		return 0
	}
}

// resolveEvent finds the event both teams play in within the match window.
// Candidates come from team A's schedule; for soccer leagues the schedule
// endpoint may omit future fixtures, so an empty result falls back to
// per-date scoreboard queries.
func (m *Matcher) resolveEvent(ctx context.Context, a, b sports.Team, league string, norm Normalized, includeFinal bool) (*sports.Event, error) {
	events, err := m.data.TeamSchedule(ctx, a.ID, league, m.cfg.MatchDaysAhead)
	if err != nil {
		return nil, err
	}
	cands := filterPairEvents(events, a.ID, b.ID, includeFinal)
	if len(cands) == 0 && isSoccerLeague(league) {
		cands, err = m.scoreboardFallback(ctx, league, a.ID, b.ID, includeFinal)
		if err != nil {
			return nil, err
		}
	}
	if len(cands) == 0 {
		return nil, nil
	}
	return m.pickEvent(cands, norm), nil
}

func filterPairEvents(events []sports.Event, aID, bID string, includeFinal bool) []sports.Event {
	var out []sports.Event
	for _, e := range events {
		if !e.HasTeams(aID, bID) {
			continue
		}
		if e.Status == sports.StatusFinal && !includeFinal {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (m *Matcher) scoreboardFallback(ctx context.Context, league, aID, bID string, includeFinal bool) ([]sports.Event, error) {
	var out []sports.Event
	today := m.now().UTC().Truncate(24 * time.Hour)
	for d := 0; d <= m.cfg.MatchDaysAhead; d++ {
		events, err := m.data.Events(ctx, league, today.AddDate(0, 0, d))
		if err != nil {
			return nil, err
		}
		out = append(out, filterPairEvents(events, aID, bID, includeFinal)...)
	}
	return out, nil
}

// pickEvent applies the tie-breakers in order: explicit stream date, then
// closest start to an explicit stream time, then status rank, then soonest
// start.
func (m *Matcher) pickEvent(cands []sports.Event, norm Normalized) *sports.Event {
	if norm.Date != nil {
		var onDate []sports.Event
		want := norm.Date.Format("2006-01-02")
		for _, e := range cands {
			if e.StartTime.In(m.cfg.Timezone).Format("2006-01-02") == want {
				onDate = append(onDate, e)
			}
		}
		if len(onDate) > 0 {
			cands = onDate
		}
	}
	if norm.Clock != nil && len(cands) > 1 {
		want := norm.Clock.Minutes()
		best, bestDiff := 0, 1<<30
		for i, e := range cands {
			local := e.StartTime.In(m.cfg.Timezone)
			diff := absInt(local.Hour()*60 + local.Minute() - want)
			if d2 := 24*60 - diff; d2 < diff {
				diff = d2
			}
			if diff < bestDiff {
				best, bestDiff = i, diff
			}
		}
		cands = []sports.Event{cands[best]}
	}

	pick := cands[0]
	for _, e := range cands[1:] {
		if statusRank(e.Status) > statusRank(pick.Status) {
			pick = e
			continue
		}
		if statusRank(e.Status) == statusRank(pick.Status) && e.StartTime.Before(pick.StartTime) {
			pick = e
		}
	}
	return &pick
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func isSoccerLeague(slug string) bool {
	for _, s := range espn.SoccerLeagues() {
		if s == slug {
			return true
		}
	}
	return false
}
