package espn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/httpclient"
	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/sports"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(zerolog.Nop(),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithRateLimit(10000, time.Minute),
		WithRetryPolicy(httpclient.RetryPolicy{MaxAttempts: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
	)
	return c, srv
}

const scoreboardFixture = `{
  "events": [{
    "id": "401772821",
    "date": "2025-12-14T18:00Z",
    "name": "New York Giants at New England Patriots",
    "shortName": "NYG @ NE",
    "season": {"type": 2},
    "status": {"type": {"name": "STATUS_SCHEDULED", "state": "pre"}},
    "competitions": [{
      "venue": {"fullName": "Gillette Stadium"},
      "broadcasts": [{"names": ["CBS"]}],
      "odds": [{
        "details": "NE -6.5", "spread": -6.5, "overUnder": 44.5,
        "homeTeamOdds": {"moneyLine": -280},
        "awayTeamOdds": {"moneyLine": 230}
      }],
      "competitors": [
        {
          "homeAway": "home",
          "team": {"id": "17", "location": "New England", "name": "Patriots",
                   "abbreviation": "NE", "displayName": "New England Patriots",
                   "shortDisplayName": "Patriots", "slug": "new-england-patriots"},
          "curatedRank": {"current": 99},
          "records": [{"type": "total", "summary": "10-2"}]
        },
        {
          "homeAway": "away",
          "team": {"id": "19", "location": "New York", "name": "Giants",
                   "abbreviation": "NYG", "displayName": "New York Giants",
                   "shortDisplayName": "Giants", "slug": "new-york-giants"},
          "curatedRank": {"current": 99},
          "records": [{"type": "total", "summary": "4-8"}]
        }
      ]
    }]
  }]
}`

func TestEventsNormalizesScoreboard(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/football/nfl/scoreboard", r.URL.Path)
		assert.Equal(t, "20251214", r.URL.Query().Get("dates"))
		w.Write([]byte(scoreboardFixture))
	}))

	date := time.Date(2025, 12, 14, 0, 0, 0, 0, time.UTC)
	events, err := c.Events(t.Context(), "nfl", date)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "401772821", ev.ID)
	assert.Equal(t, "nfl", ev.League)
	assert.Equal(t, "football", ev.Sport)
	assert.Equal(t, time.Date(2025, 12, 14, 18, 0, 0, 0, time.UTC), ev.StartTime)
	assert.Equal(t, sports.StatusScheduled, ev.Status)
	assert.Equal(t, "NYG @ NE", ev.ShortName)
	assert.Equal(t, "regular", ev.SeasonType)
	assert.Equal(t, "Gillette Stadium", ev.Venue)
	assert.Equal(t, []string{"CBS"}, ev.Broadcast)

	assert.Equal(t, "New England Patriots", ev.Home.Name)
	assert.Equal(t, "NE", ev.Home.Abbreviation)
	assert.Equal(t, "New York Giants", ev.Away.Name)
	// Rank 99 means unranked.
	assert.Zero(t, ev.HomeRank)
	require.NotNil(t, ev.HomeRecord)
	assert.Equal(t, 10, ev.HomeRecord.Wins)
	assert.Equal(t, 2, ev.HomeRecord.Losses)
	assert.Nil(t, ev.Score)

	require.NotNil(t, ev.Odds)
	assert.Equal(t, -6.5, ev.Odds.Spread)
	assert.Equal(t, 44.5, ev.Odds.OverUnder)
	assert.Equal(t, -280, ev.Odds.HomeMoneyline)
	assert.Equal(t, "NE -6.5", ev.Odds.Details)
}

func TestTeamScheduleAppliesHorizon(t *testing.T) {
	now := time.Now().UTC()
	mk := func(id string, at time.Time) string {
		return `{"id": "` + id + `", "date": "` + at.Format(dateLayout) + `",
			"status": {"type": {"name": "STATUS_SCHEDULED"}}}`
	}
	body := `{"events": [` +
		mk("recent", now.Add(-24*time.Hour)) + "," +
		mk("soon", now.AddDate(0, 0, 10)) + "," +
		mk("stale", now.Add(-96*time.Hour)) + "," +
		mk("far", now.AddDate(0, 0, 60)) +
		`]}`

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/basketball/nba/teams/8/schedule", r.URL.Path)
		w.Write([]byte(body))
	}))

	events, err := c.TeamSchedule(t.Context(), "8", "nba", 14)
	require.NoError(t, err)
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	assert.ElementsMatch(t, []string{"recent", "soon"}, ids)
}

func TestTeamStatsParsesRecordAndStreak(t *testing.T) {
	const fixture = `{"team": {
		"id": "17", "displayName": "New England Patriots",
		"rank": 7, "standingSummary": "1st in AFC East",
		"record": {"items": [
			{"type": "total", "summary": "10-2",
			 "stats": [{"name": "streak", "value": 5}]},
			{"type": "home", "summary": "6-0"},
			{"type": "road", "summary": "4-2",
			 "stats": [{"name": "streak", "value": -1}]}
		]}
	}}`
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))

	stats, err := c.TeamStats(t.Context(), "17", "nfl")
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Rank)
	assert.Equal(t, "AFC", stats.Conference)
	assert.Equal(t, "AFC East", stats.Division)
	assert.Equal(t, 10, stats.Record.Wins)
	assert.Equal(t, sports.Streak{Kind: sports.StreakWin, Length: 5}, stats.Streak)
	assert.Equal(t, 6, stats.HomeRecord.Wins)
	assert.Equal(t, sports.Streak{Kind: sports.StreakLoss, Length: 1}, stats.AwayStreak)
}

func TestUFCEventsDeriveMainCardStart(t *testing.T) {
	const fixture = `{"events": [{
		"id": "600051234", "date": "2026-01-17T23:00Z", "name": "UFC 311",
		"status": {"type": {"name": "STATUS_SCHEDULED"}}
	}]}`
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mma/ufc/scoreboard", r.URL.Path)
		w.Write([]byte(fixture))
	}))

	events, err := c.Events(t.Context(), "ufc", time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].MainCardStart)
	assert.Equal(t, events[0].StartTime.Add(3*time.Hour), *events[0].MainCardStart)
}

func TestErrorTaxonomy(t *testing.T) {
	var status int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	status = http.StatusNotFound
	_, err := c.Events(t.Context(), "nfl", time.Now())
	assert.True(t, provider.IsNotFound(err))

	status = http.StatusBadRequest
	_, err = c.Events(t.Context(), "nfl", time.Now())
	var perm *provider.PermanentError
	require.ErrorAs(t, err, &perm)

	c.ResetProviderStats()
	status = http.StatusInternalServerError
	_, err = c.Events(t.Context(), "nfl", time.Now())
	var trans *provider.TransientError
	require.ErrorAs(t, err, &trans)
	assert.Equal(t, int64(1), c.ProviderStats().Retries)

	_, err = c.Events(t.Context(), "xfl", time.Now())
	assert.ErrorIs(t, err, provider.ErrUnsupportedLeague)
}

func TestSurfaced429PenalizesWindow(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts >= 2 {
			// Last budgeted attempt carries the backoff hint.
			w.Header().Set("Retry-After", "30")
		} else {
			w.Header().Set("Retry-After", "0")
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.Events(t.Context(), "nfl", time.Now())
	require.ErrorIs(t, err, provider.ErrRateLimited)
	require.Equal(t, 2, attempts)

	// The whole window now backs off: the next call waits out the penalty
	// instead of sending.
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Events(ctx, "nfl", time.Now())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, attempts)
}

func TestEventNotFoundOnEmptySummary(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"header": {}}`))
	}))
	_, err := c.Event(t.Context(), "999", "nfl")
	assert.True(t, provider.IsNotFound(err))
}
