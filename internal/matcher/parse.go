package matcher

import "strings"

// Indicator is the separator that marks a two-team matchup. After
// normalisation only the expanded forms remain.
type Indicator string

const (
	IndicatorVersus Indicator = "versus"
	IndicatorAt     Indicator = "at"
)

// splitIndicator finds the leftmost game indicator and returns the text on
// either side. ok is false for non-matchup streams, which go down the
// single-event path instead.
//
// Convention: "away at home" and "home versus away". The orientation is only
// a tie-breaker, never a correctness requirement.
func splitIndicator(text string) (left, right string, ind Indicator, ok bool) {
	fields := strings.Fields(text)
	for i, f := range fields {
		var found Indicator
		switch f {
		case string(IndicatorVersus):
			found = IndicatorVersus
		case string(IndicatorAt):
			found = IndicatorAt
		default:
			continue
		}
		// An indicator needs a team name on both sides.
		if i == 0 || i == len(fields)-1 {
			continue
		}
		return strings.Join(fields[:i], " "), strings.Join(fields[i+1:], " "), found, true
	}
	return "", "", "", false
}
