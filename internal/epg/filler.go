package epg

import (
	"time"

	"github.com/teamarr/teamarr/internal/sports"
)

// fillerBlockHours is the guide grid: filler aligns to 00/06/12/18 local.
const fillerBlockHours = 6

// gameSlot is one already-placed game programme on a channel.
type gameSlot struct {
	Event *sports.Event
	Start time.Time
	Stop  time.Time
}

// fillerInterval is a planned filler programme before rendering. Prev and
// Next are the bracketing games for .last/.next template context; either
// may be nil at the window edges.
type fillerInterval struct {
	Kind  Kind
	Start time.Time
	Stop  time.Time
	Prev  *sports.Event
	Next  *sports.Event
}

// planFiller covers every gap around games in [windowStart, windowEnd) with
// filler intervals. games must be sorted by start and non-overlapping.
//
// Rules: the gap between two games is postgame (up to PostgameMaxHours)
// then pregame; gaps shorter than PregameMinHours are pregame only. The
// lead-in before the first game is pregame; the tail after the last game is
// postgame then idle. A channel with no games is idle throughout.
func planFiller(games []gameSlot, windowStart, windowEnd time.Time, s *Settings) []fillerInterval {
	if !windowStart.Before(windowEnd) {
		return nil
	}
	loc := s.Timezone
	if loc == nil {
		loc = time.UTC
	}

	var out []fillerInterval
	if len(games) == 0 {
		return splitOnGrid(fillerInterval{Kind: KindIdle, Start: windowStart, Stop: windowEnd}, s, loc)
	}

	first := games[0]
	if windowStart.Before(first.Start) {
		out = append(out, splitOnGrid(fillerInterval{
			Kind: KindPregame, Start: windowStart, Stop: first.Start, Next: first.Event,
		}, s, loc)...)
	}

	for i := 0; i < len(games)-1; i++ {
		prev, next := games[i], games[i+1]
		out = append(out, fillBetween(prev, &next, prev.Stop, next.Start, s, loc)...)
	}

	last := games[len(games)-1]
	if last.Stop.Before(windowEnd) {
		out = append(out, fillBetween(last, nil, last.Stop, windowEnd, s, loc)...)
	}
	return out
}

// fillBetween covers [from, to) after the game prev. next is nil for the
// window tail, where the remainder after postgame is idle instead of
// pregame.
func fillBetween(prev gameSlot, next *gameSlot, from, to time.Time, s *Settings, loc *time.Location) []fillerInterval {
	if !from.Before(to) {
		return nil
	}
	var nextEvent *sports.Event
	if next != nil {
		nextEvent = next.Event
	}

	gap := to.Sub(from)
	if next != nil && gap < hoursDur(s.PregameMinHours) {
		return splitOnGrid(fillerInterval{
			Kind: KindPregame, Start: from, Stop: to, Prev: prev.Event, Next: nextEvent,
		}, s, loc)
	}

	postEnd := from.Add(hoursDur(s.PostgameMaxHours))
	if s.MidnightMode == MidnightIdle {
		// Postgame never runs past the midnight following the game's start
		// day when the next day has no game of its own.
		dayEnd := startOfNextDay(prev.Start, loc)
		if (next == nil || !sameLocalDay(next.Start, dayEnd, loc)) && postEnd.After(dayEnd) {
			postEnd = dayEnd
		}
	}
	if postEnd.After(to) {
		postEnd = to
	}

	var out []fillerInterval
	if from.Before(postEnd) {
		out = append(out, splitOnGrid(fillerInterval{
			Kind: KindPostgame, Start: from, Stop: postEnd, Prev: prev.Event, Next: nextEvent,
		}, s, loc)...)
	}
	if postEnd.Before(to) {
		kind := KindPregame
		if next == nil {
			kind = KindIdle
		}
		out = append(out, splitOnGrid(fillerInterval{
			Kind: kind, Start: postEnd, Stop: to, Prev: prev.Event, Next: nextEvent,
		}, s, loc)...)
	}
	return out
}

// splitOnGrid cuts an interval at 6-hour boundaries whenever a piece would
// exceed MaxProgramHours. Pieces at or under the cap stay whole even when
// they cross a boundary.
func splitOnGrid(iv fillerInterval, s *Settings, loc *time.Location) []fillerInterval {
	maxDur := hoursDur(s.MaxProgramHours)
	if maxDur <= 0 {
		maxDur = fillerBlockHours * time.Hour
	}

	var out []fillerInterval
	cur := iv.Start
	for cur.Before(iv.Stop) {
		if iv.Stop.Sub(cur) <= maxDur {
			out = append(out, pieceOf(iv, cur, iv.Stop))
			break
		}
		b := nextGridBoundary(cur, loc)
		if !b.Before(iv.Stop) {
			out = append(out, pieceOf(iv, cur, iv.Stop))
			break
		}
		out = append(out, pieceOf(iv, cur, b))
		cur = b
	}
	return out
}

func pieceOf(iv fillerInterval, start, stop time.Time) fillerInterval {
	iv.Start = start
	iv.Stop = stop
	return iv
}

// nextGridBoundary returns the first local 00/06/12/18 instant strictly
// after t.
func nextGridBoundary(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	for h := fillerBlockHours; h <= 24; h += fillerBlockHours {
		b := day.Add(time.Duration(h) * time.Hour)
		if b.After(t) {
			return b
		}
	}
	return day.AddDate(0, 0, 1).Add(fillerBlockHours * time.Hour)
}

func startOfNextDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

func sameLocalDay(a, b time.Time, loc *time.Location) bool {
	la, lb := a.In(loc), b.In(loc)
	return la.Year() == lb.Year() && la.YearDay() == lb.YearDay()
}

func hoursDur(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
