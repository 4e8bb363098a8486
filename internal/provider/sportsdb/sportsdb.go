// Package sportsdb implements the secondary, narrow-coverage adapter against
// a TheSportsDB-style JSON API. It covers leagues the primary backend does
// not carry (cricket, rugby league, darts) and exposes no odds or team
// stats; those capabilities answer NotFound so callers treat them as
// "no data".
package sportsdb

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

const defaultBaseURL = "https://www.thesportsdb.com/api/v1/json/3"

// leagueIDs maps canonical slugs to upstream numeric league ids.
var leagueIDs = map[string]struct {
	ID    string
	Sport string
	Name  string
}{
	"cricket.ipl":  {"4460", "cricket", "Indian Premier League"},
	"cricket.bbl":  {"4461", "cricket", "Big Bash League"},
	"rugby.nrl":    {"4416", "rugby", "NRL"},
	"rugby.super":  {"4551", "rugby", "Super Rugby"},
	"darts.pdc":    {"4554", "darts", "PDC"},
	"boxing":       {"4445", "boxing", "Boxing"},
}

// Client is the TheSportsDB adapter. Safe for concurrent use.
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

// New builds the adapter. The free tier allows 30 requests/min, enforced
// preemptively here.
func New(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		client:  httpclient.Default(),
		limiter: httpclient.NewWindowLimiter(30, time.Minute),
		policy:  httpclient.DefaultRetryPolicy,
		log:     log.With().Str("provider", "sportsdb").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return "sportsdb" }

func (c *Client) SupportsLeague(slug string) bool {
	_, ok := leagueIDs[slug]
	return ok
}

func (c *Client) SupportedLeagues() []string {
	out := make([]string, 0, len(leagueIDs))
	for slug := range leagueIDs {
		out = append(out, slug)
	}
	return out
}

// wire shapes

type eventsResponse struct {
	Events []wireEvent `json:"events"`
}

type lookupEventResponse struct {
	Events []wireEvent `json:"events"`
}

type teamsResponse struct {
	Teams []wireTeam `json:"teams"`
}

type wireEvent struct {
	ID         string `json:"idEvent"`
	Name       string `json:"strEvent"`
	HomeTeamID string `json:"idHomeTeam"`
	AwayTeamID string `json:"idAwayTeam"`
	HomeTeam   string `json:"strHomeTeam"`
	AwayTeam   string `json:"strAwayTeam"`
	HomeScore  string `json:"intHomeScore"`
	AwayScore  string `json:"intAwayScore"`
	Venue      string `json:"strVenue"`
	Status     string `json:"strStatus"`
	Timestamp  string `json:"strTimestamp"` // "2026-03-14T18:30:00"
	Date       string `json:"dateEvent"`
	Time       string `json:"strTime"`
}

type wireTeam struct {
	ID        string `json:"idTeam"`
	Name      string `json:"strTeam"`
	ShortName string `json:"strTeamShort"`
	Badge     string `json:"strBadge"`
	Location  string `json:"strLocation"`
}

// Events returns the events scheduled for league on date.
func (c *Client) Events(ctx context.Context, league string, date time.Time) ([]sports.Event, error) {
	info, ok := leagueIDs[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/eventsday.php?d=%s&id=%s", c.baseURL, date.UTC().Format("2006-01-02"), info.ID)
	var resp eventsResponse
	if err := c.getJSON(ctx, "events", url, &resp); err != nil {
		return nil, err
	}
	events := make([]sports.Event, 0, len(resp.Events))
	for _, w := range resp.Events {
		events = append(events, c.convertEvent(w, league))
	}
	return events, nil
}

// TeamSchedule merges the team's next and last event lists, clipped to the
// horizon. The upstream caps each list at 5–15 entries, which comfortably
// covers the configured fetch windows for these leagues.
func (c *Client) TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error) {
	if _, ok := leagueIDs[league]; !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	var events []sports.Event
	for _, endpoint := range []string{"eventslast.php", "eventsnext.php"} {
		url := fmt.Sprintf("%s/%s?id=%s", c.baseURL, endpoint, teamID)
		var resp struct {
			Events  []wireEvent `json:"events"`
			Results []wireEvent `json:"results"`
		}
		if err := c.getJSON(ctx, "team_schedule", url, &resp); err != nil {
			if provider.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		wire := resp.Events
		if len(wire) == 0 {
			wire = resp.Results
		}
		for _, w := range wire {
			events = append(events, c.convertEvent(w, league))
		}
	}
	now := time.Now().UTC()
	lo := now.Add(-48 * time.Hour)
	hi := now.AddDate(0, 0, daysAhead)
	out := events[:0]
	for _, ev := range events {
		if ev.StartTime.Before(lo) || ev.StartTime.After(hi) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Team fetches one team by id.
func (c *Client) Team(ctx context.Context, teamID, league string) (*sports.Team, error) {
	if _, ok := leagueIDs[league]; !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/lookupteam.php?id=%s", c.baseURL, teamID)
	var resp teamsResponse
	if err := c.getJSON(ctx, "team", url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Teams) == 0 {
		return nil, fmt.Errorf("team %s: %w", teamID, provider.ErrNotFound)
	}
	team := c.convertTeam(resp.Teams[0], league)
	return &team, nil
}

// Event fetches one event by id.
func (c *Client) Event(ctx context.Context, eventID, league string) (*sports.Event, error) {
	if _, ok := leagueIDs[league]; !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/lookupevent.php?id=%s", c.baseURL, eventID)
	var resp lookupEventResponse
	if err := c.getJSON(ctx, "event", url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Events) == 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, provider.ErrNotFound)
	}
	ev := c.convertEvent(resp.Events[0], league)
	return &ev, nil
}

// TeamStats is not offered by this backend.
func (c *Client) TeamStats(ctx context.Context, teamID, league string) (*sports.TeamStats, error) {
	return nil, fmt.Errorf("team stats for %s: %w", teamID, provider.ErrNotFound)
}

// LeagueTeams lists a league's teams.
func (c *Client) LeagueTeams(ctx context.Context, league string) ([]sports.Team, error) {
	info, ok := leagueIDs[league]
	if !ok {
		return nil, fmt.Errorf("league %q: %w", league, provider.ErrUnsupportedLeague)
	}
	url := fmt.Sprintf("%s/lookup_all_teams.php?id=%s", c.baseURL, info.ID)
	var resp teamsResponse
	if err := c.getJSON(ctx, "league_teams", url, &resp); err != nil {
		return nil, err
	}
	teams := make([]sports.Team, 0, len(resp.Teams))
	for _, w := range resp.Teams {
		teams = append(teams, c.convertTeam(w, league))
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

func (c *Client) convertTeam(w wireTeam, league string) sports.Team {
	info := leagueIDs[league]
	return sports.Team{
		ID:        w.ID,
		Provider:  c.Name(),
		Name:      w.Name,
		ShortName: w.ShortName,
		City:      w.Location,
		LogoURL:   w.Badge,
		Sport:     info.Sport,
		League:    league,
	}
}

func (c *Client) convertEvent(w wireEvent, league string) sports.Event {
	info := leagueIDs[league]
	ev := sports.Event{
		ID:        w.ID,
		League:    league,
		Sport:     info.Sport,
		StartTime: parseEventTime(w),
		Status:    mapStatus(w.Status),
		Venue:     w.Venue,
		ShortName: w.Name,
		Home: sports.Team{
			ID: w.HomeTeamID, Provider: c.Name(), Name: w.HomeTeam,
			Sport: info.Sport, League: league,
		},
		Away: sports.Team{
			ID: w.AwayTeamID, Provider: c.Name(), Name: w.AwayTeam,
			Sport: info.Sport, League: league,
		},
	}
	var home, away int
	if _, err := fmt.Sscanf(w.HomeScore, "%d", &home); err == nil {
		if _, err := fmt.Sscanf(w.AwayScore, "%d", &away); err == nil {
			ev.Score = &sports.Score{Home: home, Away: away}
		}
	}
	return ev
}

func parseEventTime(w wireEvent) time.Time {
	if w.Timestamp != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", w.Timestamp); err == nil {
			return t.UTC()
		}
	}
	if w.Date != "" && w.Time != "" {
		if t, err := time.Parse("2006-01-02 15:04:05", w.Date+" "+w.Time); err == nil {
			return t.UTC()
		}
	}
	if w.Date != "" {
		if t, err := time.Parse("2006-01-02", w.Date); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func mapStatus(s string) sports.EventStatus {
	switch s {
	case "Match Finished", "FT", "AOT", "Finished":
		return sports.StatusFinal
	case "1H", "2H", "HT", "Live", "In Play":
		return sports.StatusInProgress
	case "Postponed", "PST":
		return sports.StatusPostponed
	case "Cancelled", "Canceled":
		return sports.StatusCanceled
	default:
		return sports.StatusScheduled
	}
}

// getJSON performs one rate-limited, retried GET and decodes into target.
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
		c.limiter.Penalize(httpclient.RetryAfter(resp, time.Minute))
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
