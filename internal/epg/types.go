// Package epg turns matched events and team schedules into a single XMLTV
// guide. The orchestrator runs the four generation phases, the filler
// planner covers the gaps between games on a 6-hour grid, and the emitter
// writes the deterministic XMLTV document atomically.
package epg

import (
	"time"

	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/sports"
	"github.com/teamarr/teamarr/internal/template"
)

// Kind distinguishes real game programmes from the filler around them.
type Kind string

const (
	KindGame     Kind = "game"
	KindPregame  Kind = "pregame"
	KindPostgame Kind = "postgame"
	KindIdle     Kind = "idle"
)

// Programme is one guide entry, fully rendered.
type Programme struct {
	ChannelID   string
	Start       time.Time
	Stop        time.Time
	Title       string
	Subtitle    string
	Description string
	Categories  []string
	Kind        Kind
	// Live/New are emitted only for real events, never filler.
	Live bool
	New  bool
}

// Channel is one guide channel block.
type Channel struct {
	ID          string
	DisplayName string
	IconURL     string
}

// MidnightMode selects filler behaviour when a game crosses midnight into a
// day with no game.
type MidnightMode string

const (
	MidnightPostgame MidnightMode = "postgame"
	MidnightIdle     MidnightMode = "idle"
)

// Settings is the merged runtime configuration a run consumes.
type Settings struct {
	OutputPath string
	Timezone   *time.Location

	OutputDaysAhead   int // default 14
	ScheduleDaysAhead int // default 30
	MatchDaysAhead    int // default 7
	LookbackHours     int // default 6

	MaxProgramHours  float64 // default 6
	PostgameMaxHours float64 // default 6
	PregameMinHours  float64 // default 1
	MidnightMode     MidnightMode

	// Duration overrides by sport; sports.DefaultDuration fills the rest.
	Durations map[string]time.Duration

	MarkLiveNew bool
}

// TeamChannel is one configured team-based guide channel.
type TeamChannel struct {
	ChannelID string
	Team      sports.Team
	League    string

	Template         TemplateConfig
	DurationOverride time.Duration
}

// TemplateConfig is the render configuration attached to a channel or an
// event group.
type TemplateConfig struct {
	Title    string
	Subtitle string

	// Rules drive the description; Priority-100 entries are fallbacks.
	Rules []template.ConditionRule

	PregameTitle  string
	PostgameTitle string
	IdleTitle     string

	// EnableFiller turns pre/postgame programmes on for event channels.
	EnableFiller bool
}

// DuplicateMode says what happens when several streams resolve to the same
// event within a group.
type DuplicateMode string

const (
	DuplicateConsolidate DuplicateMode = "consolidate" // one channel, first stream wins
	DuplicateSeparate    DuplicateMode = "separate"    // one channel per stream
	DuplicateIgnore      DuplicateMode = "ignore"      // extras dropped silently
)

// EventGroup is one configured cluster of streams matched into event
// channels.
type EventGroup struct {
	ID   string
	Name string

	// M3UGroup names the upstream manager group; M3UURL is the direct
	// playlist fallback when no manager group is configured.
	M3UGroup string
	M3UURL   string

	// Leagues is the explicit candidate set, possibly with the soccer_all
	// selector. Empty means derive candidates per stream.
	Leagues []string

	IncludeRegex      string
	ExcludeRegex      string
	ExceptionKeywords []string
	Duplicates        DuplicateMode
	IncludeFinal      bool

	Template TemplateConfig
}

// RunStatus is a run's terminal state.
type RunStatus string

const (
	StatusSuccess RunStatus = "success"
	StatusAborted RunStatus = "aborted"
	StatusFailed  RunStatus = "failed"
)

// RunRecord is the persisted summary of one generation run.
type RunRecord struct {
	Generation uint64    `json:"generation"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`

	Channels   int `json:"channels"`
	Programmes int `json:"programmes"`

	StreamsSeen    int            `json:"streams_seen"`
	StreamsMatched int            `json:"streams_matched"`
	NoMatchReasons map[string]int `json:"no_match_reasons,omitempty"`

	UnresolvedVariables []string `json:"unresolved_variables,omitempty"`
	Orphans             []string `json:"orphans,omitempty"`
	Duplicates          []string `json:"duplicates,omitempty"`

	FingerprintEntries int `json:"fingerprint_entries"`

	ProviderStats map[string]provider.Stats `json:"provider_stats,omitempty"`
}

// Duration returns the run's wall time.
func (r *RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
