// Package espn implements the primary, broad-coverage sports-data adapter
// against the ESPN site API. One client covers every league in the leagues
// table; responses are normalised into the canonical sports entities at this
// boundary and nothing upstream sees the wire shapes.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/httpclient"
	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/sports"
)

const (
	defaultBaseURL = "https://site.api.espn.com/apis/site/v2/sports"
	userAgent      = "teamarr/1.0 (+https://github.com/teamarr/teamarr)"

	// prelimsLead is how long before the main card UFC prelims run.
	prelimsLead = 3 * time.Hour
)

// Client is the ESPN adapter. Safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
	limiter *httpclient.WindowLimiter
	policy  httpclient.RetryPolicy
	log     zerolog.Logger

	retries       atomic.Int64
	reactiveWaits atomic.Int64
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithBaseURL overrides the API base; tests point it at an httptest server.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.client = hc } }

// WithRateLimit replaces the default limiter (120 requests/min).
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(c *Client) { c.limiter = httpclient.NewWindowLimiter(maxRequests, window) }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p httpclient.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// New builds the adapter.
func New(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		client:  httpclient.Default(),
		limiter: httpclient.NewWindowLimiter(120, time.Minute),
		policy:  httpclient.DefaultRetryPolicy,
		log:     log.With().Str("provider", "espn").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "espn" }

func (c *Client) SupportsLeague(slug string) bool {
	_, ok := leagues[slug]
	return ok
}

func (c *Client) SupportedLeagues() []string {
	out := make([]string, 0, len(leagues))
	for slug := range leagues {
		out = append(out, slug)
	}
	return out
}

// Events returns the scoreboard for league on date (UTC calendar day).
func (c *Client) Events(ctx context.Context, league string, date time.Time) ([]sports.Event, error) {
	info, ok := leagues[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/%s/%s/scoreboard?dates=%s", c.baseURL, info.SportPath, info.LeaguePath, date.UTC().Format("20060102"))
	var resp scoreboardResponse
	if err := c.getJSON(ctx, "events", url, &resp); err != nil {
		return nil, err
	}
	events := make([]sports.Event, 0, len(resp.Events))
	for _, w := range resp.Events {
		events = append(events, c.finishEvent(c.convertEvent(w, league)))
	}
	return events, nil
}

// TeamSchedule returns the team's games within [now, now+daysAhead]. The
// schedule endpoint covers the whole season; the horizon is applied here so
// callers never see events past their fetch window. A small lookback keeps
// games that started recently.
func (c *Client) TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error) {
	info, ok := leagues[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/%s/%s/teams/%s/schedule", c.baseURL, info.SportPath, info.LeaguePath, teamID)
	var resp scheduleResponse
	if err := c.getJSON(ctx, "team_schedule", url, &resp); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	lo := now.Add(-48 * time.Hour)
	hi := now.AddDate(0, 0, daysAhead)
	var events []sports.Event
	for _, w := range resp.Events {
		ev := c.finishEvent(c.convertEvent(w, league))
		if ev.StartTime.Before(lo) || ev.StartTime.After(hi) {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Team fetches one team's identity.
func (c *Client) Team(ctx context.Context, teamID, league string) (*sports.Team, error) {
	detail, err := c.teamDetail(ctx, teamID, league)
	if err != nil {
		return nil, err
	}
	team := c.convertTeam(detail.wireTeam, league)
	return &team, nil
}

// Event fetches one event by id via the summary endpoint.
func (c *Client) Event(ctx context.Context, eventID, league string) (*sports.Event, error) {
	info, ok := leagues[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/%s/%s/summary?event=%s", c.baseURL, info.SportPath, info.LeaguePath, eventID)
	var resp summaryResponse
	if err := c.getJSON(ctx, "event", url, &resp); err != nil {
		return nil, err
	}
	if resp.Header.ID == "" {
		return nil, fmt.Errorf("event %s: %w", eventID, provider.ErrNotFound)
	}
	ev := sports.Event{
		ID:     resp.Header.ID,
		League: league,
		Sport:  info.Sport,
	}
	if len(resp.Header.Competitions) > 0 {
		c.fillFromCompetition(&ev, resp.Header.Competitions[0], league)
	}
	ev = c.finishEvent(ev)
	return &ev, nil
}

// TeamStats builds enrichment-time context from the team detail endpoint.
func (c *Client) TeamStats(ctx context.Context, teamID, league string) (*sports.TeamStats, error) {
	detail, err := c.teamDetail(ctx, teamID, league)
	if err != nil {
		return nil, err
	}
	stats := &sports.TeamStats{
		TeamID:    teamID,
		League:    league,
		Rank:      detail.Rank,
		FetchedAt: time.Now().UTC(),
	}
	stats.Conference, stats.Division = splitStanding(detail.StandingSummary)
	for _, item := range detail.Record.Items {
		rec := sports.RecordSnapshot{Summary: item.Summary}
		if parsed := parseRecordSummary(item.Summary); parsed != nil {
			rec = *parsed
		}
		var streak sports.Streak
		for _, st := range item.Stats {
			if st.Name != "streak" {
				continue
			}
			if st.Value >= 0 {
				streak = sports.Streak{Kind: sports.StreakWin, Length: int(st.Value)}
			} else {
				streak = sports.Streak{Kind: sports.StreakLoss, Length: int(-st.Value)}
			}
		}
		switch item.Type {
		case "home":
			stats.HomeRecord = rec
			stats.HomeStreak = streak
		case "road", "away":
			stats.AwayRecord = rec
			stats.AwayStreak = streak
		default:
			stats.Record = rec
			stats.Streak = streak
		}
	}
	return stats, nil
}

// LeagueTeams lists every team in a league for the team/league cache.
func (c *Client) LeagueTeams(ctx context.Context, league string) ([]sports.Team, error) {
	info, ok := leagues[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/%s/%s/teams?limit=1000", c.baseURL, info.SportPath, info.LeaguePath)
	var resp leagueTeamsResponse
	if err := c.getJSON(ctx, "league_teams", url, &resp); err != nil {
		return nil, err
	}
	var teams []sports.Team
	for _, sp := range resp.Sports {
		for _, lg := range sp.Leagues {
			for _, t := range lg.Teams {
				teams = append(teams, c.convertTeam(t.Team, league))
			}
		}
	}
	return teams, nil
}

// ProviderStats implements provider.StatsSource.
func (c *Client) ProviderStats() provider.Stats {
	ls := c.limiter.Stats()
	return provider.Stats{
		Requests:        ls.Requests,
		Retries:         c.retries.Load(),
		PreemptiveWaits: ls.PreemptiveWaits,
		ReactiveWaits:   ls.ReactiveWaits + c.reactiveWaits.Load(),
	}
}

// ResetProviderStats implements provider.StatsSource.
func (c *Client) ResetProviderStats() {
	c.limiter.Reset()
	c.retries.Store(0)
	c.reactiveWaits.Store(0)
}

func (c *Client) teamDetail(ctx context.Context, teamID, league string) (*wireTeamDetail, error) {
	info, ok := leagues[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/%s/%s/teams/%s", c.baseURL, info.SportPath, info.LeaguePath, teamID)
	var resp teamResponse
	if err := c.getJSON(ctx, "team", url, &resp); err != nil {
		return nil, err
	}
	if resp.Team.ID == "" {
		return nil, fmt.Errorf("team %s: %w", teamID, provider.ErrNotFound)
	}
	return &resp.Team, nil
}

// finishEvent applies per-sport touches after wire conversion. UFC cards get
// a derived main-card start so the matcher can split prelims from the main
// card.
func (c *Client) finishEvent(ev sports.Event) sports.Event {
	if ev.Sport == "mma" && ev.MainCardStart == nil && !ev.StartTime.IsZero() {
		main := ev.StartTime.Add(prelimsLead)
		ev.MainCardStart = &main
	}
	return ev
}

// getJSON performs one rate-limited, retried GET and decodes into target.
// Error classification follows the provider taxonomy: transport failures
// after the retry budget are transient, 404 is NotFound, other 4xx and
// decode failures are permanent.
func (c *Client) getJSON(ctx context.Context, op, url string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	release := httpclient.GlobalHostSem.Acquire(url)
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &provider.PermanentError{Provider: c.Name(), Op: op, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	var rstats httpclient.RetryStats
	resp, err := httpclient.DoWithRetry(ctx, c.client, req, c.policy, &rstats)
	c.retries.Add(int64(rstats.Retries))
	c.reactiveWaits.Add(int64(rstats.ReactiveWaits))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &provider.TransientError{Provider: c.Name(), Op: op, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", c.Name(), op, provider.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		// The retry budget is spent; back the whole window off before the
		// next call rather than hammering through the quota.
		c.limiter.Penalize(httpclient.RetryAfter(resp, c.policy.Max429Wait))
		return &provider.TransientError{Provider: c.Name(), Op: op, Err: provider.ErrRateLimited}
	case resp.StatusCode >= 500:
		return &provider.TransientError{Provider: c.Name(), Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &provider.PermanentError{Provider: c.Name(), Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return &provider.PermanentError{Provider: c.Name(), Op: op, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// splitStanding parses "1st in AFC East" into ("AFC", "AFC East"). Anything
// unparseable yields empty strings.
func splitStanding(s string) (conference, division string) {
	const sep = " in "
	idx := len(s)
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			idx = i + len(sep)
			break
		}
	}
	if idx >= len(s) {
		return "", ""
	}
	division = s[idx:]
	for i := 0; i < len(division); i++ {
		if division[i] == ' ' {
			conference = division[:i]
			break
		}
	}
	if conference == "" {
		conference = division
	}
	return conference, division
}
