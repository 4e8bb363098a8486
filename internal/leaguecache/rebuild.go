package leaguecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teamarr/teamarr/internal/sports"
)

// RefreshInterval is the full-rebuild cadence. On-demand refreshes through
// Rebuild reset the clock.
const RefreshInterval = 7 * 24 * time.Hour

// rebuildConcurrency bounds parallel league fetches during a rebuild so a
// refresh never monopolises a provider's rate budget.
const rebuildConcurrency = 4

// DataSource is the slice of the data service the rebuild needs.
type DataSource interface {
	LeagueTeams(ctx context.Context, league string) ([]sports.Team, error)
	Leagues() []string
}

// Store persists snapshots so a cold start serves lookups before the first
// rebuild completes.
type Store interface {
	SaveTeamLeagueSnapshot(teams []sports.Team, builtAt time.Time) error
	LoadTeamLeagueSnapshot() ([]sports.Team, time.Time, error)
}

// ErrEmptyRebuild means no league produced any teams; the previous snapshot
// is kept.
var ErrEmptyRebuild = errors.New("leaguecache: rebuild produced no teams")

// LoadPersisted restores the last persisted snapshot, if any. Missing or
// empty persistence is not an error; the cache just starts cold.
func (c *Cache) LoadPersisted() error {
	if c.store == nil {
		return nil
	}
	teams, builtAt, err := c.store.LoadTeamLeagueSnapshot()
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		return nil
	}
	c.snap.Store(buildSnapshot(teams, builtAt))
	c.log.Info().Int("teams", len(teams)).Time("built_at", builtAt).Msg("restored team/league cache from store")
	return nil
}

// Rebuild fetches every enabled league's team list, builds a shadow index,
// and swaps it in. Per-league failures are logged and skipped; the rebuild
// only fails outright when nothing at all could be fetched. Readers keep
// the old snapshot until the swap.
func (c *Cache) Rebuild(ctx context.Context, data DataSource) error {
	leagues := data.Leagues()
	start := c.now()

	var (
		mu     sync.Mutex
		teams  []sports.Team
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rebuildConcurrency)
	for _, league := range leagues {
		league := league
		g.Go(func() error {
			lt, err := data.LeagueTeams(gctx, league)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn().Err(err).Str("league", league).Msg("league team list failed; skipping")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			teams = append(teams, lt...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(teams) == 0 {
		return ErrEmptyRebuild
	}

	c.snap.Store(buildSnapshot(teams, start))
	c.log.Info().
		Int("leagues", len(leagues)-failed).
		Int("failed", failed).
		Int("teams", len(teams)).
		Dur("elapsed", c.now().Sub(start)).
		Msg("team/league cache rebuilt")

	if c.store != nil {
		if err := c.store.SaveTeamLeagueSnapshot(teams, start); err != nil {
			c.log.Warn().Err(err).Msg("persisting team/league snapshot failed")
		}
	}
	return nil
}
