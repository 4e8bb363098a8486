// Package store is the sqlite persistence layer. It owns the schema and
// implements the storage surfaces of the orchestrator, the reconciler, the
// matcher, and the team/league cache. Configuration-shaped rows (channels,
// groups, templates) are stored as JSON documents keyed by id; rows that
// queries filter on carry real columns.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/matcher"
	"github.com/teamarr/teamarr/internal/reconciler"
	"github.com/teamarr/teamarr/internal/sports"
)

// Store wraps one sqlite database. Safe for concurrent use; sqlite writes
// are serialised through a single connection.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and migrates it to
// the current schema version. Use ":memory:" for tests.
func Open(path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, log: log.With().Str("component", "store").Logger()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// NextGeneration atomically increments and returns the run counter.
func (s *Store) NextGeneration() (uint64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var gen uint64
	if err := tx.QueryRow(`SELECT value FROM meta WHERE key = 'generation'`).Scan(&gen); err != nil && err != sql.ErrNoRows {
		return 0, err
	}
	gen++
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('generation', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, gen); err != nil {
		return 0, err
	}
	return gen, tx.Commit()
}

// TeamChannels returns all configured team channels, ordered by channel id.
func (s *Store) TeamChannels() ([]epg.TeamChannel, error) {
	rows, err := s.db.Query(`SELECT json FROM team_channels ORDER BY channel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []epg.TeamChannel
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var tc epg.TeamChannel
		if err := json.Unmarshal(raw, &tc); err != nil {
			return nil, fmt.Errorf("decode team channel: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func (s *Store) SaveTeamChannel(tc *epg.TeamChannel) error {
	raw, err := json.Marshal(tc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO team_channels (channel_id, league, json) VALUES (?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET league = excluded.league, json = excluded.json`,
		tc.ChannelID, tc.League, raw)
	return err
}

func (s *Store) DeleteTeamChannel(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM team_channels WHERE channel_id = ?`, channelID)
	return err
}

// EventGroups returns all configured event groups with their exception
// keywords attached, ordered by id.
func (s *Store) EventGroups() ([]epg.EventGroup, error) {
	rows, err := s.db.Query(`SELECT json FROM event_groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []epg.EventGroup
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var g epg.EventGroup
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("decode event group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		kw, err := s.exceptionKeywords(out[i].ID)
		if err != nil {
			return nil, err
		}
		if len(kw) > 0 {
			out[i].ExceptionKeywords = kw
		}
	}
	return out, nil
}

func (s *Store) SaveEventGroup(g *epg.EventGroup) error {
	keywords := g.ExceptionKeywords
	stored := *g
	stored.ExceptionKeywords = nil
	raw, err := json.Marshal(&stored)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO event_groups (id, json) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET json = excluded.json`, g.ID, raw); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM exception_keywords WHERE group_id = ?`, g.ID); err != nil {
		return err
	}
	for _, kw := range keywords {
		if _, err := tx.Exec(`INSERT INTO exception_keywords (group_id, keyword) VALUES (?, ?)`, g.ID, kw); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) DeleteEventGroup(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM exception_keywords WHERE group_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM event_groups WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) exceptionKeywords(groupID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT keyword FROM exception_keywords WHERE group_id = ? ORDER BY keyword`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, err
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// SaveRunRecord appends one run to the history.
func (s *Store) SaveRunRecord(rec *epg.RunRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO run_history (generation, started_at, status, json) VALUES (?, ?, ?, ?)
		ON CONFLICT(generation) DO UPDATE SET started_at = excluded.started_at, status = excluded.status, json = excluded.json`,
		rec.Generation, rec.StartedAt.UTC().Format(time.RFC3339Nano), string(rec.Status), raw)
	return err
}

// RecentRuns returns the newest n run records, newest first.
func (s *Store) RecentRuns(n int) ([]epg.RunRecord, error) {
	rows, err := s.db.Query(`SELECT json FROM run_history ORDER BY generation DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []epg.RunRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec epg.RunRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode run record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ManagedChannels returns every managed-channel row.
func (s *Store) ManagedChannels() ([]reconciler.ManagedChannel, error) {
	rows, err := s.db.Query(`SELECT json FROM managed_channels ORDER BY channel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciler.ManagedChannel
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var mc reconciler.ManagedChannel
		if err := json.Unmarshal(raw, &mc); err != nil {
			return nil, fmt.Errorf("decode managed channel: %w", err)
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (s *Store) SaveManagedChannel(mc *reconciler.ManagedChannel) error {
	raw, err := json.Marshal(mc)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO managed_channels (channel_id, json) VALUES (?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET json = excluded.json`, mc.ChannelID, raw)
	return err
}

func (s *Store) DeleteManagedChannel(channelID string) error {
	_, err := s.db.Exec(`DELETE FROM managed_channels WHERE channel_id = ?`, channelID)
	return err
}

// LoadMatchCache restores the fingerprint cache.
func (s *Store) LoadMatchCache() ([]matcher.CacheEntry, error) {
	rows, err := s.db.Query(`SELECT fingerprint, event_id, league, confidence, segment, last_seen_generation FROM match_cache`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []matcher.CacheEntry
	for rows.Next() {
		var e matcher.CacheEntry
		var segment string
		if err := rows.Scan(&e.Fingerprint, &e.EventID, &e.League, &e.Confidence, &segment, &e.LastSeenGeneration); err != nil {
			return nil, err
		}
		e.Segment = matcher.Segment(segment)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveMatchCache replaces the persisted fingerprint cache in one
// transaction.
func (s *Store) SaveMatchCache(entries []matcher.CacheEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM match_cache`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO match_cache (fingerprint, event_id, league, confidence, segment, last_seen_generation) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.Exec(e.Fingerprint, e.EventID, e.League, e.Confidence, string(e.Segment), e.LastSeenGeneration); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveTeamLeagueSnapshot replaces the persisted team/league index.
func (s *Store) SaveTeamLeagueSnapshot(teams []sports.Team, builtAt time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM team_league_cache`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO team_league_cache (team_key, league, json) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i := range teams {
		raw, err := json.Marshal(&teams[i])
		if err != nil {
			return err
		}
		key := sports.TeamKey(teams[i].Provider, teams[i].ID)
		if _, err := stmt.Exec(key, teams[i].League, raw); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('team_league_built_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, builtAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadTeamLeagueSnapshot returns the persisted index and when it was built.
func (s *Store) LoadTeamLeagueSnapshot() ([]sports.Team, time.Time, error) {
	var builtAt time.Time
	var stamp string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'team_league_built_at'`).Scan(&stamp)
	switch {
	case err == sql.ErrNoRows:
		return nil, time.Time{}, nil
	case err != nil:
		return nil, time.Time{}, err
	}
	if builtAt, err = time.Parse(time.RFC3339Nano, stamp); err != nil {
		return nil, time.Time{}, fmt.Errorf("parse snapshot stamp: %w", err)
	}

	rows, err := s.db.Query(`SELECT json FROM team_league_cache ORDER BY team_key, league`)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer rows.Close()

	var out []sports.Team
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, time.Time{}, err
		}
		var t sports.Team
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, time.Time{}, fmt.Errorf("decode cached team: %w", err)
		}
		out = append(out, t)
	}
	return out, builtAt, rows.Err()
}

// Aliases returns a league's user-defined alias map. Errors are logged and
// swallowed so a broken alias table degrades matching instead of failing a
// run.
func (s *Store) Aliases(league string) map[string]string {
	rows, err := s.db.Query(`SELECT alias, team_id FROM team_aliases WHERE league = ?`, league)
	if err != nil {
		s.log.Warn().Err(err).Str("league", league).Msg("alias lookup failed")
		return nil
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var alias, teamID string
		if err := rows.Scan(&alias, &teamID); err != nil {
			s.log.Warn().Err(err).Msg("alias row scan failed")
			return nil
		}
		out[alias] = teamID
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *Store) SaveAlias(league, alias, teamID string) error {
	_, err := s.db.Exec(`INSERT INTO team_aliases (league, alias, team_id) VALUES (?, ?, ?)
		ON CONFLICT(league, alias) DO UPDATE SET team_id = excluded.team_id`, league, alias, teamID)
	return err
}

func (s *Store) DeleteAlias(league, alias string) error {
	_, err := s.db.Exec(`DELETE FROM team_aliases WHERE league = ? AND alias = ?`, league, alias)
	return err
}

// LeagueProviders returns the league to provider routing overrides.
func (s *Store) LeagueProviders() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT league, provider FROM league_providers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var league, prov string
		if err := rows.Scan(&league, &prov); err != nil {
			return nil, err
		}
		out[league] = prov
	}
	return out, rows.Err()
}

func (s *Store) SetLeagueProvider(league, provider string) error {
	_, err := s.db.Exec(`INSERT INTO league_providers (league, provider) VALUES (?, ?)
		ON CONFLICT(league) DO UPDATE SET provider = excluded.provider`, league, provider)
	return err
}

// SaveSettings replaces the settings singleton with raw JSON.
func (s *Store) SaveSettings(raw []byte) error {
	if !json.Valid(raw) {
		return fmt.Errorf("settings payload is not valid JSON")
	}
	_, err := s.db.Exec(`INSERT INTO settings (id, json) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET json = excluded.json`, raw)
	return err
}

// LoadSettings returns the settings singleton, or nil when never saved.
func (s *Store) LoadSettings() ([]byte, error) {
	var raw []byte
	err := s.db.QueryRow(`SELECT json FROM settings WHERE id = 1`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return raw, err
}
