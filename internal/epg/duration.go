package epg

import (
	"time"

	"github.com/teamarr/teamarr/internal/sports"
)

// effectiveDuration resolves a game programme's length: channel override,
// then the settings' per-sport table, then the sport default.
func effectiveDuration(override time.Duration, sport string, s *Settings) time.Duration {
	if override > 0 {
		return override
	}
	if d, ok := s.Durations[sport]; ok && d > 0 {
		return d
	}
	return sports.DefaultDuration(sport)
}

// eventWindow returns a single event's programme bounds, honouring split MMA
// cards: a prelims segment runs from the event start to the main card, a
// main segment from the main card for the sport duration.
func eventWindow(ev *sports.Event, segment string, dur time.Duration) (start, stop time.Time) {
	start = ev.StartTime
	stop = start.Add(dur)
	if ev.MainCardStart == nil {
		return start, stop
	}
	switch segment {
	case "prelims":
		return ev.StartTime, *ev.MainCardStart
	case "main":
		return *ev.MainCardStart, ev.MainCardStart.Add(dur)
	default:
		return start, stop
	}
}
