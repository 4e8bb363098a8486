// Package dataservice is the only path to provider data for every upstream
// component. It routes a league slug to an adapter through the registry,
// fronts the adapters with a date-aware TTL cache, and coalesces concurrent
// misses on the same key so at most one in-flight fetch per key exists.
package dataservice

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/sports"
)

// Service fronts the provider registry. Safe for concurrent use.
type Service struct {
	registry *provider.Registry
	cache    *memCache
	group    singleflight.Group
	log      zerolog.Logger

	generation atomic.Uint64

	now func() time.Time // test hook
}

// New builds the service over a registry.
func New(registry *provider.Registry, log zerolog.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    newMemCache(),
		log:      log.With().Str("component", "dataservice").Logger(),
		now:      time.Now,
	}
}

// BeginGeneration marks the start of run gen. Entries fetched during a
// generation are pinned for that generation even if their TTL lapses
// mid-run.
func (s *Service) BeginGeneration(gen uint64) {
	s.generation.Store(gen)
}

// Registry exposes the underlying registry for components that need the
// adapter list itself (the team/league cache rebuild).
func (s *Service) Registry() *provider.Registry { return s.registry }

// Events returns the league's events for a UTC calendar day.
func (s *Service) Events(ctx context.Context, league string, date time.Time) ([]sports.Event, error) {
	key := fmt.Sprintf("events|%s|%s", league, date.UTC().Format("2006-01-02"))
	ttl := eventsTTL(date, s.now())
	v, err := s.fetch(ctx, key, ttl, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Events(ctx, league, date)
	})
	if err != nil {
		return nil, err
	}
	return v.([]sports.Event), nil
}

// TeamSchedule returns a team's upcoming games within daysAhead.
func (s *Service) TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error) {
	key := fmt.Sprintf("team_schedule|%s|%s|%d", league, teamID, daysAhead)
	v, err := s.fetch(ctx, key, ttlTeamSchedule, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.TeamSchedule(ctx, teamID, league, daysAhead)
	})
	if err != nil {
		return nil, err
	}
	return v.([]sports.Event), nil
}

// Team returns one team, or nil when the provider has no such team.
func (s *Service) Team(ctx context.Context, teamID, league string) (*sports.Team, error) {
	key := fmt.Sprintf("team|%s|%s", league, teamID)
	v, err := s.fetch(ctx, key, ttlTeam, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Team(ctx, teamID, league)
	})
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v.(*sports.Team), nil
}

// Event returns one event, or nil when the provider has no such event.
func (s *Service) Event(ctx context.Context, eventID, league string) (*sports.Event, error) {
	key := fmt.Sprintf("event|%s|%s", league, eventID)
	v, err := s.fetch(ctx, key, ttlEvent, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.Event(ctx, eventID, league)
	})
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v.(*sports.Event), nil
}

// TeamStats returns enrichment-time stats, or nil when the backend has none.
func (s *Service) TeamStats(ctx context.Context, teamID, league string) (*sports.TeamStats, error) {
	key := fmt.Sprintf("team_stats|%s|%s", league, teamID)
	v, err := s.fetch(ctx, key, ttlTeamStats, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.TeamStats(ctx, teamID, league)
	})
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v.(*sports.TeamStats), nil
}

// LeagueTeams returns the league's full team list. Used by the team/league
// cache rebuild; cached with the long team TTL.
func (s *Service) LeagueTeams(ctx context.Context, league string) ([]sports.Team, error) {
	key := fmt.Sprintf("league_teams|%s", league)
	v, err := s.fetch(ctx, key, ttlTeam, league, func(ctx context.Context, a provider.Adapter) (any, error) {
		return a.LeagueTeams(ctx, league)
	})
	if err != nil {
		return nil, err
	}
	return v.([]sports.Team), nil
}

// SupportsLeague reports whether any enabled adapter covers slug.
func (s *Service) SupportsLeague(slug string) bool {
	_, err := s.registry.ForLeague(slug)
	return err == nil
}

// Leagues returns every league slug covered by an enabled adapter.
func (s *Service) Leagues() []string {
	return s.registry.Leagues()
}

// ProviderStats returns per-adapter counters accumulated since the last
// reset, keyed by adapter name.
func (s *Service) ProviderStats() map[string]provider.Stats {
	out := make(map[string]provider.Stats)
	for _, a := range s.registry.Enabled() {
		if src, ok := a.(provider.StatsSource); ok {
			out[a.Name()] = src.ProviderStats()
		}
	}
	return out
}

// ResetProviderStats zeroes every adapter's counters. Called at generation
// start.
func (s *Service) ResetProviderStats() {
	for _, a := range s.registry.Enabled() {
		if src, ok := a.(provider.StatsSource); ok {
			src.ResetProviderStats()
		}
	}
}

// PurgeCache drops the in-memory cache. Used when cache corruption is
// detected; subsequent reads rebuild from providers.
func (s *Service) PurgeCache() {
	s.log.Warn().Msg("purging data cache; rebuilding from providers")
	s.cache.purge()
}

// fetch is the read-through path: cache, then singleflight-coalesced
// provider call through the routed adapter.
func (s *Service) fetch(ctx context.Context, key string, ttl time.Duration, league string, call func(context.Context, provider.Adapter) (any, error)) (any, error) {
	gen := s.generation.Load()
	if v, ok := s.cache.get(key, ttl, s.now(), gen); ok {
		metrics.DataCacheHits.Inc()
		return v, nil
	}
	metrics.DataCacheMisses.Inc()

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Double-check under the flight: a racing miss may have filled the
		// key while we queued.
		if v, ok := s.cache.get(key, ttl, s.now(), gen); ok {
			return v, nil
		}
		adapter, err := s.registry.ForLeague(league)
		if err != nil {
			return nil, err
		}
		v, err := call(ctx, adapter)
		if err != nil {
			return nil, err
		}
		s.cache.put(key, v, s.now(), gen)
		return v, nil
	})
	return v, err
}
