// Package provider defines the capability set every sports-data backend
// implements, the shared error taxonomy, and the ordered registry the data
// service routes through. Adapters live in subpackages; adding a backend
// means implementing Adapter and registering it in cmd/teamarr.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamarr/teamarr/internal/sports"
)

// Adapter is the uniform capability set over one sports-data backend.
// All operations are read-only. Adapters return ErrNotFound (wrapped) for
// missing entities rather than nil-with-nil-error.
type Adapter interface {
	Name() string
	SupportsLeague(slug string) bool
	SupportedLeagues() []string

	Events(ctx context.Context, league string, date time.Time) ([]sports.Event, error)
	TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error)
	Team(ctx context.Context, teamID, league string) (*sports.Team, error)
	Event(ctx context.Context, eventID, league string) (*sports.Event, error)
	TeamStats(ctx context.Context, teamID, league string) (*sports.TeamStats, error)
	LeagueTeams(ctx context.Context, league string) ([]sports.Team, error)
}

// Sentinel errors for the provider taxonomy. Transient errors are retried by
// the HTTP layer; permanent ones surface to the caller unretried.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnsupportedLeague = errors.New("unsupported league")
	ErrRateLimited       = errors.New("rate limited")
)

// TransientError marks a failure worth retrying (network error, 5xx, 429
// without Retry-After).
type TransientError struct {
	Provider string
	Op       string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s %s: transient: %v", e.Provider, e.Op, e.Err)
}
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that retrying cannot fix (4xx other than
// 429, malformed payloads). The affected team/event is skipped; the run
// continues.
type PermanentError struct {
	Provider string
	Op       string
	Err      error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}
func (e *PermanentError) Unwrap() error { return e.Err }

// IsNotFound reports whether err means "no such entity upstream".
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Entry is one registered adapter with routing metadata.
type Entry struct {
	Name     string
	Adapter  Adapter
	Priority int // lower is preferred
	Enabled  bool
}

// Registry holds the ordered adapter set. It is built once at process init
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	entries []Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an adapter. Call order does not matter; Priority decides.
func (r *Registry) Register(name string, a Adapter, priority int, enabled bool) {
	r.entries = append(r.entries, Entry{Name: name, Adapter: a, Priority: priority, Enabled: enabled})
}

// ForLeague returns the enabled adapter with the lowest priority that
// supports slug, or ErrUnsupportedLeague.
func (r *Registry) ForLeague(slug string) (Adapter, error) {
	var best *Entry
	for i := range r.entries {
		e := &r.entries[i]
		if !e.Enabled || !e.Adapter.SupportsLeague(slug) {
			continue
		}
		if best == nil || e.Priority < best.Priority {
			best = e
		}
	}
	if best == nil {
		return nil, fmt.Errorf("league %q: %w", slug, ErrUnsupportedLeague)
	}
	return best.Adapter, nil
}

// Enabled returns all enabled adapters ordered by priority (stable for equal
// priorities).
func (r *Registry) Enabled() []Adapter {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.Enabled {
			out = append(out, e)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	adapters := make([]Adapter, len(out))
	for i, e := range out {
		adapters[i] = e.Adapter
	}
	return adapters
}

// Leagues returns the union of supported league slugs across enabled
// adapters, first-registration order preserved.
func (r *Registry) Leagues() []string {
	seen := make(map[string]bool)
	var slugs []string
	for _, a := range r.Enabled() {
		for _, s := range a.SupportedLeagues() {
			if !seen[s] {
				seen[s] = true
				slugs = append(slugs, s)
			}
		}
	}
	return slugs
}
