package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputDaysAhead != 14 {
		t.Errorf("OutputDaysAhead = %d, want 14", cfg.OutputDaysAhead)
	}
	if cfg.ScheduleDaysAhead != 30 {
		t.Errorf("ScheduleDaysAhead = %d, want 30", cfg.ScheduleDaysAhead)
	}
	if cfg.MatchDaysAhead != 7 {
		t.Errorf("MatchDaysAhead = %d, want 7", cfg.MatchDaysAhead)
	}
	if cfg.LookbackHours != 6 {
		t.Errorf("LookbackHours = %d, want 6", cfg.LookbackHours)
	}
	if cfg.Timezone != time.UTC {
		t.Errorf("Timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.MaxProgramHours != 6.0 {
		t.Errorf("MaxProgramHours = %v, want 6.0", cfg.MaxProgramHours)
	}
	if cfg.MidnightMode != "postgame" {
		t.Errorf("MidnightMode = %q", cfg.MidnightMode)
	}
	if cfg.ChannelCreateTiming != "day_of" || cfg.ChannelDeleteTiming != "end_of_day" {
		t.Errorf("lifecycle timings = %q/%q", cfg.ChannelCreateTiming, cfg.ChannelDeleteTiming)
	}
	if !cfg.MarkLiveNew {
		t.Error("MarkLiveNew should default true")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("log defaults = %q/%q", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TEAMARR_EPG_OUTPUT_DAYS_AHEAD", "7")
	t.Setenv("TEAMARR_EPG_TIMEZONE", "America/Detroit")
	t.Setenv("TEAMARR_MIDNIGHT_CROSSOVER_MODE", "idle")
	t.Setenv("TEAMARR_CHANNEL_CREATE_TIMING", "day_before")
	t.Setenv("TEAMARR_MARK_LIVE_NEW", "false")
	t.Setenv("TEAMARR_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.OutputDaysAhead != 7 {
		t.Errorf("OutputDaysAhead = %d, want 7", cfg.OutputDaysAhead)
	}
	if cfg.Timezone.String() != "America/Detroit" {
		t.Errorf("Timezone = %v", cfg.Timezone)
	}
	if cfg.MidnightMode != "idle" {
		t.Errorf("MidnightMode = %q", cfg.MidnightMode)
	}
	if cfg.ChannelCreateTiming != "day_before" {
		t.Errorf("ChannelCreateTiming = %q", cfg.ChannelCreateTiming)
	}
	if cfg.MarkLiveNew {
		t.Error("MarkLiveNew should be false")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q", cfg.LogFormat)
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("TEAMARR_DURATION_BASKETBALL", "3")
	t.Setenv("TEAMARR_DURATION_SOCCER", "2.5")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Durations["basketball"]; got != 3*time.Hour {
		t.Errorf("basketball = %v", got)
	}
	if got := cfg.Durations["soccer"]; got != 2*time.Hour+30*time.Minute {
		t.Errorf("soccer = %v", got)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct{ key, val string }{
		{"TEAMARR_EPG_TIMEZONE", "Mars/Olympus"},
		{"TEAMARR_MIDNIGHT_CROSSOVER_MODE", "sideways"},
		{"TEAMARR_CHANNEL_CREATE_TIMING", "whenever"},
		{"TEAMARR_CHANNEL_DELETE_TIMING", "never"},
		{"TEAMARR_LOG_FORMAT", "xml"},
		{"TEAMARR_EPG_OUTPUT_DAYS_AHEAD", "two weeks"},
		{"TEAMARR_MAX_PROGRAM_HOURS", "lots"},
		{"TEAMARR_DURATION_BASKETBALL", "-1"},
		{"TEAMARR_MANAGER_URL", "ftp://dispatch.local"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q should fail", tc.key, tc.val)
			}
		})
	}
}
