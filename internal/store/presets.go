package store

import (
	"encoding/json"
	"fmt"

	"github.com/teamarr/teamarr/internal/template"
)

// Preset is a named, reusable description rule set users can attach to a
// channel or group template.
type Preset struct {
	Name  string                   `json:"name"`
	Rules []template.ConditionRule `json:"rules"`
}

// defaultPresets ship with a fresh database. Users may edit or delete them;
// seeding only fills an empty table.
var defaultPresets = []Preset{
	{
		Name: "hype",
		Rules: []template.ConditionRule{
			{Priority: 10, Condition: "win_streak>=5", Template: "{team} ride a {streak_text} streak into {venue}."},
			{Priority: 20, Condition: "is_top_ten_matchup", Template: "Top-ten showdown: {rank} {team} against {opponent_rank} {opponent}."},
			{Priority: 30, Condition: "is_ranked_opponent", Template: "{team} take on ranked {opponent}."},
			{Priority: 100, Template: "{away_team} visit {home_team}. {record} on the season."},
		},
	},
	{
		Name: "plain",
		Rules: []template.ConditionRule{
			{Priority: 100, Template: "{away_team} at {home_team}."},
			{Priority: 100, Template: "{matchup} from {venue}."},
		},
	},
	{
		Name: "broadcast",
		Rules: []template.ConditionRule{
			{Priority: 10, Condition: "is_national_broadcast", Template: "{matchup}, nationally televised on {broadcast}."},
			{Priority: 100, Template: "{matchup}."},
		},
	},
}

func (s *Store) seedPresets() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM condition_presets`).Scan(&count); err != nil {
		return fmt.Errorf("count presets: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, p := range defaultPresets {
		raw, err := json.Marshal(p.Rules)
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO condition_presets (name, json) VALUES (?, ?)`, p.Name, raw); err != nil {
			return fmt.Errorf("seed preset %s: %w", p.Name, err)
		}
	}
	return nil
}

// ConditionPresets returns all presets ordered by name.
func (s *Store) ConditionPresets() ([]Preset, error) {
	rows, err := s.db.Query(`SELECT name, json FROM condition_presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Preset
	for rows.Next() {
		var p Preset
		var raw []byte
		if err := rows.Scan(&p.Name, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &p.Rules); err != nil {
			return nil, fmt.Errorf("decode preset %s: %w", p.Name, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SavePreset creates or replaces a named preset.
func (s *Store) SavePreset(p *Preset) error {
	raw, err := json.Marshal(p.Rules)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO condition_presets (name, json) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET json = excluded.json`, p.Name, raw)
	return err
}

func (s *Store) DeletePreset(name string) error {
	_, err := s.db.Exec(`DELETE FROM condition_presets WHERE name = ?`, name)
	return err
}
