package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/sports"
)

// stubAdapter supports a fixed league set and answers nothing else.
type stubAdapter struct {
	name    string
	leagues []string
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) SupportsLeague(slug string) bool {
	for _, l := range s.leagues {
		if l == slug {
			return true
		}
	}
	return false
}
func (s *stubAdapter) SupportedLeagues() []string { return s.leagues }
func (s *stubAdapter) Events(context.Context, string, time.Time) ([]sports.Event, error) {
	return nil, ErrNotFound
}
func (s *stubAdapter) TeamSchedule(context.Context, string, string, int) ([]sports.Event, error) {
	return nil, ErrNotFound
}
func (s *stubAdapter) Team(context.Context, string, string) (*sports.Team, error) {
	return nil, ErrNotFound
}
func (s *stubAdapter) Event(context.Context, string, string) (*sports.Event, error) {
	return nil, ErrNotFound
}
func (s *stubAdapter) TeamStats(context.Context, string, string) (*sports.TeamStats, error) {
	return nil, ErrNotFound
}
func (s *stubAdapter) LeagueTeams(context.Context, string) ([]sports.Team, error) {
	return nil, ErrNotFound
}

func TestForLeaguePrefersLowestPriority(t *testing.T) {
	primary := &stubAdapter{name: "primary", leagues: []string{"nfl", "nba"}}
	secondary := &stubAdapter{name: "secondary", leagues: []string{"nfl", "cricket"}}

	r := NewRegistry()
	r.Register("secondary", secondary, 1, true)
	r.Register("primary", primary, 0, true)

	a, err := r.ForLeague("nfl")
	require.NoError(t, err)
	assert.Equal(t, "primary", a.Name())

	a, err = r.ForLeague("cricket")
	require.NoError(t, err)
	assert.Equal(t, "secondary", a.Name())

	_, err = r.ForLeague("handball")
	assert.ErrorIs(t, err, ErrUnsupportedLeague)
}

func TestForLeagueSkipsDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register("off", &stubAdapter{name: "off", leagues: []string{"nfl"}}, 0, false)
	r.Register("on", &stubAdapter{name: "on", leagues: []string{"nfl"}}, 5, true)

	a, err := r.ForLeague("nfl")
	require.NoError(t, err)
	assert.Equal(t, "on", a.Name())

	assert.Len(t, r.Enabled(), 1)
}

func TestLeaguesUnionPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("a", &stubAdapter{name: "a", leagues: []string{"nfl", "nba"}}, 0, true)
	r.Register("b", &stubAdapter{name: "b", leagues: []string{"nba", "cricket"}}, 1, true)

	assert.Equal(t, []string{"nfl", "nba", "cricket"}, r.Leagues())
}

func TestStatsAdd(t *testing.T) {
	total := Stats{Requests: 1, Retries: 1}
	total.Add(Stats{Requests: 4, PreemptiveWaits: 2, ReactiveWaits: 3})
	assert.Equal(t, Stats{Requests: 5, Retries: 1, PreemptiveWaits: 2, ReactiveWaits: 3}, total)
}
