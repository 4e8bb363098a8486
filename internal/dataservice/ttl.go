package dataservice

import "time"

// TTL tiers. Date-bearing reads get a TTL from how close the requested date
// is to "today": near dates move fast (scores, postponements), far dates
// barely change.
const (
	ttlEventsPast     = 8 * time.Hour
	ttlEventsToday    = 30 * time.Minute
	ttlEventsTomorrow = 4 * time.Hour
	ttlEventsWeek     = 8 * time.Hour
	ttlEventsFar      = 24 * time.Hour

	ttlTeamSchedule = 8 * time.Hour
	ttlEvent        = 30 * time.Minute
	ttlTeamStats    = 4 * time.Hour
	ttlTeam         = 24 * time.Hour
)

// eventsTTL picks the tier for a scoreboard read of date, evaluated against
// now. Both are compared as UTC calendar days.
func eventsTTL(date, now time.Time) time.Duration {
	day := func(t time.Time) time.Time {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	d := day(date)
	today := day(now)
	switch diff := int(d.Sub(today).Hours() / 24); {
	case diff < 0:
		return ttlEventsPast
	case diff == 0:
		return ttlEventsToday
	case diff == 1:
		return ttlEventsTomorrow
	case diff <= 7:
		return ttlEventsWeek
	default:
		return ttlEventsFar
	}
}
