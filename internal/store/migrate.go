package store

import "fmt"

// migrations run in order; schema_meta.version records the last applied
// index + 1. New schema changes append statements here, never edit old
// entries.
var migrations = []string{
	`
	CREATE TABLE schema_meta (
		version INTEGER NOT NULL
	);
	CREATE TABLE meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE settings (
		id   INTEGER PRIMARY KEY CHECK (id = 1),
		json TEXT NOT NULL
	);
	CREATE TABLE team_channels (
		channel_id TEXT PRIMARY KEY,
		league     TEXT NOT NULL,
		json       TEXT NOT NULL
	);
	CREATE TABLE event_groups (
		id   TEXT PRIMARY KEY,
		json TEXT NOT NULL
	);
	CREATE TABLE exception_keywords (
		group_id TEXT NOT NULL,
		keyword  TEXT NOT NULL,
		PRIMARY KEY (group_id, keyword)
	);
	CREATE TABLE managed_channels (
		channel_id TEXT PRIMARY KEY,
		json       TEXT NOT NULL
	);
	CREATE TABLE match_cache (
		fingerprint          TEXT PRIMARY KEY,
		event_id             TEXT NOT NULL,
		league               TEXT NOT NULL,
		confidence           REAL NOT NULL,
		segment              TEXT NOT NULL DEFAULT '',
		last_seen_generation INTEGER NOT NULL
	);
	CREATE TABLE team_league_cache (
		team_key TEXT NOT NULL,
		league   TEXT NOT NULL,
		json     TEXT NOT NULL,
		PRIMARY KEY (team_key, league)
	);
	CREATE TABLE run_history (
		generation INTEGER PRIMARY KEY,
		started_at TEXT NOT NULL,
		status     TEXT NOT NULL,
		json       TEXT NOT NULL
	);
	CREATE TABLE team_aliases (
		league  TEXT NOT NULL,
		alias   TEXT NOT NULL,
		team_id TEXT NOT NULL,
		PRIMARY KEY (league, alias)
	);
	CREATE TABLE league_providers (
		league   TEXT PRIMARY KEY,
		provider TEXT NOT NULL
	);
	CREATE TABLE condition_presets (
		name TEXT PRIMARY KEY,
		json TEXT NOT NULL
	);
	`,
}

func (s *Store) migrate() error {
	version := 0
	var hasMeta int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_meta'`).Scan(&hasMeta); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if hasMeta > 0 {
		if err := s.db.QueryRow(`SELECT version FROM schema_meta`).Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for ; version < len(migrations); version++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[version]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", version+1, err)
		}
		if _, err := tx.Exec(`DELETE FROM schema_meta`); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, version+1); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.log.Info().Int("version", version+1).Msg("schema migrated")
	}
	return s.seedPresets()
}
