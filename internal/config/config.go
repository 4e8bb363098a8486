// Package config loads process configuration from the environment. Call
// LoadEnvFile(".env") before Load() to use a .env file. Settings persisted
// in the database override these defaults at run time; the environment
// covers what must be known before the database is open.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/safeurl"
)

// Config holds Teamarr's process-level settings.
type Config struct {
	// Paths
	DatabasePath string // sqlite database file
	OutputPath   string // generated XMLTV file

	// Downstream IPTV manager
	ManagerURL      string
	ManagerUsername string
	ManagerPassword string

	// EPG window
	OutputDaysAhead   int // default 14
	ScheduleDaysAhead int // default 30
	MatchDaysAhead    int // default 7
	LookbackHours     int // default 6
	Timezone          *time.Location
	MarkLiveNew       bool

	// Filler shape
	MaxProgramHours  float64 // default 6.0
	PostgameMaxHours float64 // default 6.0
	PregameMinHours  float64 // default 1.0
	MidnightMode     string  // "postgame" or "idle"

	// Per-sport game durations from TEAMARR_DURATION_<SPORT> (hours).
	Durations map[string]time.Duration

	// Channel lifecycle
	ChannelCreateTiming string // day_of, day_before, 2_days_before, week_before
	ChannelDeleteTiming string // stream_removed, end_of_day, end_of_next_day, manual

	// Logging
	LogLevel  string // zerolog level name; default "info"
	LogDir    string // empty = stderr only
	LogFormat string // "text" or "json"; default "text"
}

var createTimings = map[string]bool{
	"day_of": true, "day_before": true, "2_days_before": true, "week_before": true,
}

var deleteTimings = map[string]bool{
	"stream_removed": true, "end_of_day": true, "end_of_next_day": true, "manual": true,
}

// Load reads the TEAMARR_* environment. A non-nil error means the process
// must not start: bad timezone, unknown enum value, or an unparseable
// number.
func Load() (*Config, error) {
	c := &Config{
		DatabasePath:        getEnv("TEAMARR_DB", "./teamarr.db"),
		OutputPath:          getEnv("TEAMARR_XMLTV_PATH", "./guide.xml"),
		ManagerURL:          os.Getenv("TEAMARR_MANAGER_URL"),
		ManagerUsername:     os.Getenv("TEAMARR_MANAGER_USER"),
		ManagerPassword:     os.Getenv("TEAMARR_MANAGER_PASS"),
		MarkLiveNew:         getEnvBool("TEAMARR_MARK_LIVE_NEW", true),
		MidnightMode:        getEnv("TEAMARR_MIDNIGHT_CROSSOVER_MODE", "postgame"),
		ChannelCreateTiming: getEnv("TEAMARR_CHANNEL_CREATE_TIMING", "day_of"),
		ChannelDeleteTiming: getEnv("TEAMARR_CHANNEL_DELETE_TIMING", "end_of_day"),
		LogLevel:            getEnv("TEAMARR_LOG_LEVEL", "info"),
		LogDir:              os.Getenv("TEAMARR_LOG_DIR"),
		LogFormat:           getEnv("TEAMARR_LOG_FORMAT", "text"),
	}

	var err error
	if c.OutputDaysAhead, err = getEnvInt("TEAMARR_EPG_OUTPUT_DAYS_AHEAD", 14); err != nil {
		return nil, err
	}
	if c.ScheduleDaysAhead, err = getEnvInt("TEAMARR_TEAM_SCHEDULE_DAYS_AHEAD", 30); err != nil {
		return nil, err
	}
	if c.MatchDaysAhead, err = getEnvInt("TEAMARR_EVENT_MATCH_DAYS_AHEAD", 7); err != nil {
		return nil, err
	}
	if c.LookbackHours, err = getEnvInt("TEAMARR_EPG_LOOKBACK_HOURS", 6); err != nil {
		return nil, err
	}
	if c.MaxProgramHours, err = getEnvFloat("TEAMARR_MAX_PROGRAM_HOURS", 6.0); err != nil {
		return nil, err
	}
	if c.PostgameMaxHours, err = getEnvFloat("TEAMARR_POSTGAME_MAX_HOURS", 6.0); err != nil {
		return nil, err
	}
	if c.PregameMinHours, err = getEnvFloat("TEAMARR_PREGAME_MIN_HOURS", 1.0); err != nil {
		return nil, err
	}

	tz := getEnv("TEAMARR_EPG_TIMEZONE", "UTC")
	if c.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TEAMARR_EPG_TIMEZONE: unknown timezone %q", tz)
	}

	if c.MidnightMode != "postgame" && c.MidnightMode != "idle" {
		return nil, fmt.Errorf("TEAMARR_MIDNIGHT_CROSSOVER_MODE: want postgame or idle, got %q", c.MidnightMode)
	}
	if !createTimings[c.ChannelCreateTiming] {
		return nil, fmt.Errorf("TEAMARR_CHANNEL_CREATE_TIMING: unknown value %q", c.ChannelCreateTiming)
	}
	if !deleteTimings[c.ChannelDeleteTiming] {
		return nil, fmt.Errorf("TEAMARR_CHANNEL_DELETE_TIMING: unknown value %q", c.ChannelDeleteTiming)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return nil, fmt.Errorf("TEAMARR_LOG_FORMAT: want text or json, got %q", c.LogFormat)
	}
	if c.ManagerURL != "" && !safeurl.IsHTTPOrHTTPS(c.ManagerURL) {
		return nil, fmt.Errorf("TEAMARR_MANAGER_URL: want an http or https URL, got %q", c.ManagerURL)
	}

	if c.Durations, err = loadDurations(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadDurations scans for TEAMARR_DURATION_<SPORT>=<hours> entries, e.g.
// TEAMARR_DURATION_BASKETBALL=3 or TEAMARR_DURATION_SOCCER=2.5.
func loadDurations() (map[string]time.Duration, error) {
	const prefix = "TEAMARR_DURATION_"
	out := make(map[string]time.Duration)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, prefix) {
			continue
		}
		eq := strings.Index(kv, "=")
		key, val := kv[:eq], kv[eq+1:]
		hours, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || hours <= 0 {
			return nil, fmt.Errorf("%s: want positive hours, got %q", key, val)
		}
		sport := strings.ToLower(strings.TrimPrefix(key, prefix))
		out[sport] = time.Duration(hours * float64(time.Hour))
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func getEnvInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: want integer, got %q", key, v)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: want number, got %q", key, v)
	}
	return f, nil
}
