// Package template renders channel titles, subtitles, and descriptions from
// placeholder templates. A placeholder is {variable} or {variable.suffix},
// where .next and .last shift the lookup to the team's adjacent games.
// Unresolved placeholders render empty and are reported, never fatal.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/sports"
)

// Context is everything a variable can draw from. Variables are pure
// functions of it.
type Context struct {
	FocalTeam sports.Team
	Event     *sports.Event
	NextEvent *sports.Event
	LastEvent *sports.Event

	Stats    *sports.TeamStats
	OppStats *sports.TeamStats

	Now      time.Time
	Timezone *time.Location
}

func (c *Context) loc() *time.Location {
	if c.Timezone != nil {
		return c.Timezone
	}
	return time.UTC
}

// eventFor maps a placeholder suffix to the game it reads from.
func (c *Context) eventFor(suffix string) *sports.Event {
	switch suffix {
	case "next":
		return c.NextEvent
	case "last":
		return c.LastEvent
	default:
		return c.Event
	}
}

// opponent returns the focal team's opponent in ev.
func (c *Context) opponent(ev *sports.Event) sports.Team {
	opp, _ := ev.Opponent(c.FocalTeam.ID)
	return opp
}

func (c *Context) isHome(ev *sports.Event) bool {
	return ev.Home.ID == c.FocalTeam.ID
}

// variable resolves name (already stripped of its suffix) against ev.
// ok=false marks the placeholder unresolved.
func (c *Context) variable(name, suffix string) (string, bool) {
	ev := c.eventFor(suffix)
	if ev == nil {
		return "", false
	}
	loc := c.loc()

	switch name {
	case "team":
		return c.FocalTeam.Name, true
	case "team_short":
		return firstNonEmpty(c.FocalTeam.ShortName, c.FocalTeam.Name), true
	case "opponent":
		return nonEmptyVar(c.opponent(ev).Name)
	case "opponent_short":
		opp := c.opponent(ev)
		return nonEmptyVar(firstNonEmpty(opp.ShortName, opp.Name))
	case "home_team":
		return nonEmptyVar(ev.Home.Name)
	case "away_team":
		return nonEmptyVar(ev.Away.Name)
	case "matchup":
		if ev.Home.Name == "" || ev.Away.Name == "" {
			return nonEmptyVar(ev.ShortName)
		}
		return ev.Away.Name + " at " + ev.Home.Name, true
	case "league":
		return nonEmptyVar(strings.ToUpper(ev.League))
	case "sport":
		return nonEmptyVar(ev.Sport)
	case "event_name":
		return nonEmptyVar(ev.ShortName)

	case "game_time":
		return ev.StartTime.In(loc).Format("3:04 PM"), true
	case "game_date":
		return ev.StartTime.In(loc).Format("Jan 2"), true
	case "game_day":
		return ev.StartTime.In(loc).Format("Monday"), true

	case "venue":
		return nonEmptyVar(ev.Venue)
	case "broadcast":
		if len(ev.Broadcast) == 0 {
			return "", false
		}
		return strings.Join(ev.Broadcast, ", "), true

	case "home_away":
		if c.isHome(ev) {
			return "vs", true
		}
		return "at", true

	case "record":
		if c.Stats == nil {
			return recordVar(c.focalRecordSnapshot(ev))
		}
		return nonEmptyVar(c.Stats.Record.Summary)
	case "opponent_record":
		if c.OppStats != nil && c.OppStats.Record.Summary != "" {
			return c.OppStats.Record.Summary, true
		}
		return recordVar(c.opponentRecordSnapshot(ev))
	case "home_record":
		return statsField(c.Stats, func(s *sports.TeamStats) string { return s.HomeRecord.Summary })
	case "away_record":
		return statsField(c.Stats, func(s *sports.TeamStats) string { return s.AwayRecord.Summary })

	case "streak":
		if c.Stats == nil || c.Stats.Streak.Length == 0 {
			return "", false
		}
		return strconv.Itoa(c.Stats.Streak.Length), true
	case "streak_text":
		if c.Stats == nil || c.Stats.Streak.Length == 0 {
			return "", false
		}
		return fmt.Sprintf("%s%d", c.Stats.Streak.Kind, c.Stats.Streak.Length), true

	case "spread":
		if ev.Odds == nil || ev.Odds.Details == "" {
			return "", false
		}
		return ev.Odds.Details, true
	case "over_under":
		if ev.Odds == nil || ev.Odds.OverUnder == 0 {
			return "", false
		}
		return strconv.FormatFloat(ev.Odds.OverUnder, 'f', -1, 64), true

	case "rank":
		return rankVar(c.focalRank(ev))
	case "opponent_rank":
		return rankVar(c.opponentRank(ev))

	case "score":
		if ev.Score == nil {
			return "", false
		}
		home, away := ev.Score.Home, ev.Score.Away
		if c.isHome(ev) {
			return fmt.Sprintf("%d-%d", home, away), true
		}
		return fmt.Sprintf("%d-%d", away, home), true
	case "result":
		return c.resultVar(ev)

	default:
		return "", false
	}
}

func (c *Context) focalRecordSnapshot(ev *sports.Event) *sports.RecordSnapshot {
	if c.isHome(ev) {
		return ev.HomeRecord
	}
	return ev.AwayRecord
}

func (c *Context) opponentRecordSnapshot(ev *sports.Event) *sports.RecordSnapshot {
	if c.isHome(ev) {
		return ev.AwayRecord
	}
	return ev.HomeRecord
}

func (c *Context) focalRank(ev *sports.Event) int {
	if c.isHome(ev) {
		return ev.HomeRank
	}
	return ev.AwayRank
}

func (c *Context) opponentRank(ev *sports.Event) int {
	if c.isHome(ev) {
		return ev.AwayRank
	}
	return ev.HomeRank
}

// resultVar renders W/L from the focal team's perspective, only for final
// games.
func (c *Context) resultVar(ev *sports.Event) (string, bool) {
	if ev.Status != sports.StatusFinal || ev.Score == nil {
		return "", false
	}
	focalScore, oppScore := ev.Score.Home, ev.Score.Away
	if !c.isHome(ev) {
		focalScore, oppScore = oppScore, focalScore
	}
	switch {
	case focalScore > oppScore:
		return "W", true
	case focalScore < oppScore:
		return "L", true
	default:
		return "D", true
	}
}

func nonEmptyVar(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}

func recordVar(r *sports.RecordSnapshot) (string, bool) {
	if r == nil || r.Summary == "" {
		return "", false
	}
	return r.Summary, true
}

func rankVar(rank int) (string, bool) {
	if rank < 1 || rank > 25 {
		return "", false
	}
	return "#" + strconv.Itoa(rank), true
}

func statsField(s *sports.TeamStats, get func(*sports.TeamStats) string) (string, bool) {
	if s == nil {
		return "", false
	}
	return nonEmptyVar(get(s))
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
