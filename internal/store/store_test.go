package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/matcher"
	"github.com/teamarr/teamarr/internal/reconciler"
	"github.com/teamarr/teamarr/internal/sports"
	"github.com/teamarr/teamarr/internal/template"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigratesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "teamarr.db")

	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	gen, err := s.NextGeneration()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)
	require.NoError(t, s.Close())

	// Reopening an up-to-date database is a no-op migration and keeps data.
	s2, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()
	gen, err = s2.NextGeneration()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gen)
}

func TestNextGenerationIsMonotonic(t *testing.T) {
	s := openTest(t)
	var last uint64
	for i := 0; i < 5; i++ {
		gen, err := s.NextGeneration()
		require.NoError(t, err)
		assert.Greater(t, gen, last)
		last = gen
	}
}

func TestTeamChannelRoundTrip(t *testing.T) {
	s := openTest(t)

	tc := epg.TeamChannel{
		ChannelID: "teamarr.pistons",
		League:    "nba",
		Team:      sports.Team{ID: "8", Provider: "espn", Name: "Detroit Pistons", Sport: "basketball", League: "nba"},
		Template: epg.TemplateConfig{
			Title: "{away_team} at {home_team}",
			Rules: []template.ConditionRule{{Priority: 100, Template: "{matchup}"}},
		},
		DurationOverride: 2 * time.Hour,
	}
	require.NoError(t, s.SaveTeamChannel(&tc))

	got, err := s.TeamChannels()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tc, got[0])

	// Upsert replaces in place.
	tc.Template.Title = "{matchup}"
	require.NoError(t, s.SaveTeamChannel(&tc))
	got, err = s.TeamChannels()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "{matchup}", got[0].Template.Title)

	require.NoError(t, s.DeleteTeamChannel(tc.ChannelID))
	got, err = s.TeamChannels()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEventGroupKeywordsAreTransactional(t *testing.T) {
	s := openTest(t)

	g := epg.EventGroup{
		ID: "nflgrp", Name: "NFL Games",
		Leagues:           []string{"nfl"},
		ExceptionKeywords: []string{"spanish", "alt cam"},
		Duplicates:        epg.DuplicateConsolidate,
	}
	require.NoError(t, s.SaveEventGroup(&g))

	got, err := s.EventGroups()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"alt cam", "spanish"}, got[0].ExceptionKeywords)
	assert.Equal(t, []string{"nfl"}, got[0].Leagues)

	// Re-saving with fewer keywords drops the stale row.
	g.ExceptionKeywords = []string{"spanish"}
	require.NoError(t, s.SaveEventGroup(&g))
	got, err = s.EventGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"spanish"}, got[0].ExceptionKeywords)

	require.NoError(t, s.DeleteEventGroup("nflgrp"))
	got, err = s.EventGroups()
	require.NoError(t, err)
	assert.Empty(t, got)
	kw, err := s.exceptionKeywords("nflgrp")
	require.NoError(t, err)
	assert.Empty(t, kw)
}

func TestRunHistoryNewestFirst(t *testing.T) {
	s := openTest(t)

	for gen := uint64(1); gen <= 3; gen++ {
		rec := epg.RunRecord{
			Generation: gen,
			StartedAt:  time.Date(2025, 12, 15, int(gen), 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2025, 12, 15, int(gen), 5, 0, 0, time.UTC),
			Status:     epg.StatusSuccess,
			Channels:   int(gen),
		}
		require.NoError(t, s.SaveRunRecord(&rec))
	}

	got, err := s.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].Generation)
	assert.Equal(t, uint64(2), got[1].Generation)
	assert.Equal(t, 3, got[0].Channels)
}

func TestManagedChannelRoundTrip(t *testing.T) {
	s := openTest(t)

	due := time.Date(2025, 12, 16, 23, 59, 59, 0, time.UTC)
	mc := reconciler.ManagedChannel{
		ChannelID: "nflgrp.401772821", GroupID: "nflgrp", EventID: "401772821",
		ManagerID: "mgr-1", Name: "NYG @ NE", Number: 500,
		HomeTeam: "New England Patriots", AwayTeam: "New York Giants",
		StreamIDs:         []string{"1", "2"},
		EventStart:        time.Date(2025, 12, 15, 18, 15, 0, 0, time.UTC),
		ScheduledDeleteAt: &due,
		DeletePolicy:      reconciler.DeleteEndOfDay,
	}
	require.NoError(t, s.SaveManagedChannel(&mc))

	got, err := s.ManagedChannels()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mc, got[0])

	require.NoError(t, s.DeleteManagedChannel(mc.ChannelID))
	got, err = s.ManagedChannels()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMatchCacheReplaceSemantics(t *testing.T) {
	s := openTest(t)

	first := []matcher.CacheEntry{
		{Fingerprint: "aaa", EventID: "1", League: "nfl", Confidence: 1.0, LastSeenGeneration: 4},
		{Fingerprint: "bbb", EventID: "2", League: "nba", Confidence: 0.9, Segment: matcher.SegmentMain, LastSeenGeneration: 5},
	}
	require.NoError(t, s.SaveMatchCache(first))

	got, err := s.LoadMatchCache()
	require.NoError(t, err)
	assert.ElementsMatch(t, first, got)

	// Save replaces everything, it does not merge.
	second := []matcher.CacheEntry{{Fingerprint: "ccc", EventID: "3", League: "nhl", Confidence: 0.85, LastSeenGeneration: 6}}
	require.NoError(t, s.SaveMatchCache(second))
	got, err = s.LoadMatchCache()
	require.NoError(t, err)
	assert.ElementsMatch(t, second, got)
}

func TestTeamLeagueSnapshotRoundTrip(t *testing.T) {
	s := openTest(t)

	// Never saved: zero time, no error.
	teams, builtAt, err := s.LoadTeamLeagueSnapshot()
	require.NoError(t, err)
	assert.Empty(t, teams)
	assert.True(t, builtAt.IsZero())

	want := []sports.Team{
		{ID: "8", Provider: "espn", Name: "Detroit Pistons", Sport: "basketball", League: "nba"},
		{ID: "360", Provider: "espn", Name: "Manchester United", Sport: "soccer", League: "eng.1"},
		{ID: "360", Provider: "espn", Name: "Manchester United", Sport: "soccer", League: "eng.fa"},
	}
	stamp := time.Date(2025, 12, 10, 6, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveTeamLeagueSnapshot(want, stamp))

	teams, builtAt, err = s.LoadTeamLeagueSnapshot()
	require.NoError(t, err)
	assert.Equal(t, stamp, builtAt)
	assert.ElementsMatch(t, want, teams)
}

func TestAliases(t *testing.T) {
	s := openTest(t)

	assert.Nil(t, s.Aliases("nfl"))

	require.NoError(t, s.SaveAlias("nfl", "pats", "17"))
	require.NoError(t, s.SaveAlias("nfl", "g-men", "19"))
	assert.Equal(t, map[string]string{"pats": "17", "g-men": "19"}, s.Aliases("nfl"))
	assert.Nil(t, s.Aliases("nba"))

	require.NoError(t, s.SaveAlias("nfl", "pats", "99"))
	assert.Equal(t, "99", s.Aliases("nfl")["pats"])

	require.NoError(t, s.DeleteAlias("nfl", "pats"))
	assert.Equal(t, map[string]string{"g-men": "19"}, s.Aliases("nfl"))
}

func TestLeagueProviders(t *testing.T) {
	s := openTest(t)

	require.NoError(t, s.SetLeagueProvider("nfl", "espn"))
	require.NoError(t, s.SetLeagueProvider("mma", "espn"))
	require.NoError(t, s.SetLeagueProvider("nfl", "thesportsdb"))

	got, err := s.LeagueProviders()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nfl": "thesportsdb", "mma": "espn"}, got)
}

func TestSettingsSingleton(t *testing.T) {
	s := openTest(t)

	raw, err := s.LoadSettings()
	require.NoError(t, err)
	assert.Nil(t, raw)

	require.Error(t, s.SaveSettings([]byte("not json")))

	require.NoError(t, s.SaveSettings([]byte(`{"epg_output_days_ahead":14}`)))
	require.NoError(t, s.SaveSettings([]byte(`{"epg_output_days_ahead":7}`)))
	raw, err = s.LoadSettings()
	require.NoError(t, err)
	assert.JSONEq(t, `{"epg_output_days_ahead":7}`, string(raw))
}

func TestConditionPresetsSeededOnce(t *testing.T) {
	s := openTest(t)

	presets, err := s.ConditionPresets()
	require.NoError(t, err)
	require.NotEmpty(t, presets)

	names := make(map[string]bool)
	for _, p := range presets {
		names[p.Name] = true
		assert.NotEmpty(t, p.Rules, p.Name)
	}
	assert.True(t, names["plain"])

	// A user deleting a seeded preset must not see it resurrected.
	require.NoError(t, s.DeletePreset("plain"))
	require.NoError(t, s.seedPresets())
	presets, err = s.ConditionPresets()
	require.NoError(t, err)
	for _, p := range presets {
		assert.NotEqual(t, "plain", p.Name)
	}

	custom := Preset{Name: "mine", Rules: []template.ConditionRule{{Priority: 100, Template: "{matchup}"}}}
	require.NoError(t, s.SavePreset(&custom))
	presets, err = s.ConditionPresets()
	require.NoError(t, err)
	found := false
	for _, p := range presets {
		if p.Name == "mine" {
			found = true
			assert.Equal(t, custom.Rules, p.Rules)
		}
	}
	assert.True(t, found)
}
