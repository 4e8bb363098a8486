// Package sports defines the canonical entities shared by every layer:
// teams, leagues, events, and team stats. Provider adapters normalise their
// wire formats into these shapes at the adapter boundary; nothing upstream
// of an adapter ever sees provider-specific JSON.
package sports

import (
	"strings"
	"time"
)

// EventStatus is the lifecycle state of a fixture.
type EventStatus string

const (
	StatusScheduled  EventStatus = "scheduled"
	StatusInProgress EventStatus = "in_progress"
	StatusFinal      EventStatus = "final"
	StatusPostponed  EventStatus = "postponed"
	StatusCanceled   EventStatus = "canceled"
)

// Team identifies a sports team as known to one provider.
// (Provider, ID) is globally unique; the same club may appear in several
// leagues via separate TeamLeagueEntry rows.
type Team struct {
	ID           string `json:"id"`       // provider-scoped id
	Provider     string `json:"provider"` // adapter name, e.g. "espn"
	Name         string `json:"name"`     // canonical display name
	ShortName    string `json:"short_name,omitempty"`
	Abbreviation string `json:"abbreviation,omitempty"`
	Slug         string `json:"slug,omitempty"`
	City         string `json:"city,omitempty"`
	LogoURL      string `json:"logo_url,omitempty"`
	Sport        string `json:"sport"`
	League       string `json:"league"` // league slug, e.g. "nfl", "eng.1"
}

// League is a competition, keyed by its canonical slug.
type League struct {
	Slug     string        `json:"slug"`
	Name     string        `json:"name"`
	Sport    string        `json:"sport"`
	Provider string        `json:"provider"`
	Duration time.Duration `json:"duration,omitempty"` // per-sport default game length
	LogoURL  string        `json:"logo_url,omitempty"`
}

// TeamLeagueEntry records one league a team participates in.
type TeamLeagueEntry struct {
	TeamKey  string `json:"team_key"` // provider:team_id
	League   string `json:"league"`
	Provider string `json:"provider"`
}

// Score is a final or in-progress score pair, home then away.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Odds carries the betting lines attached to an event when the provider has
// them. Spread is from the home team's perspective.
type Odds struct {
	Spread        float64 `json:"spread,omitempty"`
	OverUnder     float64 `json:"over_under,omitempty"`
	HomeMoneyline int     `json:"home_moneyline,omitempty"`
	AwayMoneyline int     `json:"away_moneyline,omitempty"`
	Details       string  `json:"details,omitempty"` // e.g. "NE -3.5"
}

// RecordSnapshot is a team's W-L[-D] record as reported at game time.
type RecordSnapshot struct {
	Summary string `json:"summary"`          // "10-2", "8-4-1"
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
	Draws   int    `json:"draws,omitempty"`
}

// Event is a single fixture. StartTime is always UTC. For tournament sports
// (golf, racing, tennis, MMA) Home/Away hold the modeled main participants.
type Event struct {
	ID        string      `json:"id"` // provider-scoped id
	League    string      `json:"league"`
	Sport     string      `json:"sport"`
	StartTime time.Time   `json:"start_time"`
	Status    EventStatus `json:"status"`
	Home      Team        `json:"home"`
	Away      Team        `json:"away"`
	Venue     string      `json:"venue,omitempty"`
	Score     *Score      `json:"score,omitempty"`
	Broadcast []string    `json:"broadcast,omitempty"`
	Odds      *Odds       `json:"odds,omitempty"`
	HomeRecord *RecordSnapshot `json:"home_record,omitempty"`
	AwayRecord *RecordSnapshot `json:"away_record,omitempty"`
	ShortName string      `json:"short_name,omitempty"`
	// Season context, when the provider reports it.
	SeasonType string `json:"season_type,omitempty"` // "preseason", "regular", "playoff"
	// MMA cards: main card start when distinct from the event start.
	MainCardStart *time.Time `json:"main_card_start,omitempty"`
	// Rankings at game time; 0 = unranked.
	HomeRank int `json:"home_rank,omitempty"`
	AwayRank int `json:"away_rank,omitempty"`
}

// HasTeams reports whether the event's competitor set equals {a, b},
// in either orientation.
func (e *Event) HasTeams(aID, bID string) bool {
	return (e.Home.ID == aID && e.Away.ID == bID) || (e.Home.ID == bID && e.Away.ID == aID)
}

// IsTeam reports whether id is one of the event's competitors.
func (e *Event) IsTeam(id string) bool {
	return e.Home.ID == id || e.Away.ID == id
}

// Opponent returns the other side relative to teamID, and whether teamID is
// the home side. Returns the home team when teamID matches neither side.
func (e *Event) Opponent(teamID string) (opp Team, isHome bool) {
	if e.Home.ID == teamID {
		return e.Away, true
	}
	return e.Home, false
}

// StreakKind says which way a team's current run is going.
type StreakKind string

const (
	StreakWin  StreakKind = "W"
	StreakLoss StreakKind = "L"
)

// Streak is a current run of results.
type Streak struct {
	Kind   StreakKind `json:"kind"`
	Length int        `json:"length"`
}

// TeamStats is a team's context at enrichment time. It is valid for a short
// TTL and is never a historical record.
type TeamStats struct {
	TeamID     string         `json:"team_id"`
	League     string         `json:"league"`
	Record     RecordSnapshot `json:"record"`
	HomeRecord RecordSnapshot `json:"home_record"`
	AwayRecord RecordSnapshot `json:"away_record"`
	Streak     Streak         `json:"streak"`
	HomeStreak Streak         `json:"home_streak"`
	AwayStreak Streak         `json:"away_streak"`
	Conference string         `json:"conference,omitempty"`
	Division   string         `json:"division,omitempty"`
	Rank       int            `json:"rank,omitempty"` // 0 = unranked
	FetchedAt  time.Time      `json:"fetched_at"`
}

// TeamKey builds the cache key "provider:id" used by the team/league cache.
func TeamKey(provider, id string) string {
	return provider + ":" + id
}

// DefaultDuration returns the default game duration for a sport.
// Unknown sports get 3.5 hours.
func DefaultDuration(sport string) time.Duration {
	switch strings.ToLower(sport) {
	case "football":
		return 3*time.Hour + 30*time.Minute
	case "basketball":
		return 3 * time.Hour
	case "hockey":
		return 3 * time.Hour
	case "baseball":
		return 3*time.Hour + 30*time.Minute
	case "soccer":
		return 2*time.Hour + 30*time.Minute
	case "mma":
		return 5 * time.Hour
	case "rugby":
		return 2*time.Hour + 30*time.Minute
	case "boxing":
		return 4 * time.Hour
	case "tennis":
		return 3 * time.Hour
	case "golf":
		return 6 * time.Hour
	case "racing":
		return 3 * time.Hour
	case "cricket":
		return 4 * time.Hour
	default:
		return 3*time.Hour + 30*time.Minute
	}
}
