package template

import (
	"hash/fnv"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/teamarr/teamarr/internal/sports"
)

// ConditionRule is one entry of a template's ordered description list.
// Priority sorts ascending; priority 100 is the unconditional fallback.
type ConditionRule struct {
	Priority  int    `json:"priority"`
	Condition string `json:"condition"`
	Template  string `json:"template"`
}

// DefaultPriority marks always-match fallback rules.
const DefaultPriority = 100

// nationalNetworks marks a broadcast as national rather than regional.
var nationalNetworks = map[string]bool{
	"abc": true, "cbs": true, "fox": true, "nbc": true,
	"espn": true, "espn2": true, "espn+": true, "tnt": true, "tbs": true,
	"fs1": true, "amazon prime": true, "prime video": true,
	"peacock": true, "netflix": true, "apple tv+": true, "nfl network": true,
}

// ChooseRule picks the first rule whose condition holds, rules sorted
// ascending by priority. All priority-100 rules match unconditionally; when
// several exist one is drawn with seed, so identical contexts repeat within
// a run but vary across runs. ok=false only when no rule matches at all.
func ChooseRule(rules []ConditionRule, ctx *Context, seed uint64) (ConditionRule, bool) {
	sorted := append([]ConditionRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	var fallbacks []ConditionRule
	for _, r := range sorted {
		if r.Priority >= DefaultPriority {
			fallbacks = append(fallbacks, r)
			continue
		}
		if EvalCondition(r.Condition, ctx) {
			return r, true
		}
	}
	switch len(fallbacks) {
	case 0:
		return ConditionRule{}, false
	case 1:
		return fallbacks[0], true
	default:
		rng := rand.New(rand.NewSource(int64(seed)))
		return fallbacks[rng.Intn(len(fallbacks))], true
	}
}

// RuleSeed derives the per-channel seed for fallback selection: the run's
// generation mixed with the channel key.
func RuleSeed(generation uint64, channelKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(channelKey))
	return generation ^ h.Sum64()
}

// EvalCondition evaluates one condition kind against ctx. The set is
// closed; unknown conditions never match.
func EvalCondition(cond string, ctx *Context) bool {
	cond = strings.TrimSpace(cond)
	ev := ctx.Event
	if ev == nil {
		return false
	}

	if n, ok := streakThreshold(cond, "win_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.Streak }, sports.StreakWin, n)
	}
	if n, ok := streakThreshold(cond, "loss_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.Streak }, sports.StreakLoss, n)
	}
	if n, ok := streakThreshold(cond, "home_win_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.HomeStreak }, sports.StreakWin, n)
	}
	if n, ok := streakThreshold(cond, "home_loss_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.HomeStreak }, sports.StreakLoss, n)
	}
	if n, ok := streakThreshold(cond, "away_win_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.AwayStreak }, sports.StreakWin, n)
	}
	if n, ok := streakThreshold(cond, "away_loss_streak"); ok {
		return streakAtLeast(ctx.Stats, func(s *sports.TeamStats) sports.Streak { return s.AwayStreak }, sports.StreakLoss, n)
	}
	if arg, ok := parseCall(cond, "opponent_name_contains"); ok {
		opp := ctx.opponent(ev)
		return arg != "" && strings.Contains(strings.ToLower(opp.Name), strings.ToLower(arg))
	}

	switch cond {
	case "is_home":
		return ctx.isHome(ev)
	case "is_away":
		return !ctx.isHome(ev)
	case "is_playoff":
		return ev.SeasonType == "playoff"
	case "is_preseason":
		return ev.SeasonType == "preseason"
	case "has_odds":
		return ev.Odds != nil
	case "is_ranked_opponent":
		r := ctx.opponentRank(ev)
		return r >= 1 && r <= 25
	case "is_top_ten_matchup":
		return ev.HomeRank >= 1 && ev.HomeRank <= 10 && ev.AwayRank >= 1 && ev.AwayRank <= 10
	case "is_national_broadcast":
		for _, b := range ev.Broadcast {
			if nationalNetworks[strings.ToLower(b)] {
				return true
			}
		}
		return false
	case "is_conference_game":
		return ctx.Stats != nil && ctx.OppStats != nil &&
			ctx.Stats.Conference != "" &&
			ctx.Stats.Conference == ctx.OppStats.Conference
	default:
		return false
	}
}

// streakThreshold parses "name>=N" (also accepting the ≥ form).
func streakThreshold(cond, name string) (int, bool) {
	rest, found := strings.CutPrefix(cond, name)
	if !found {
		return 0, false
	}
	rest = strings.TrimSpace(rest)
	if r, ok := strings.CutPrefix(rest, ">="); ok {
		rest = r
	} else if r, ok := strings.CutPrefix(rest, "≥"); ok {
		rest = r
	} else {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func streakAtLeast(stats *sports.TeamStats, get func(*sports.TeamStats) sports.Streak, kind sports.StreakKind, n int) bool {
	if stats == nil {
		return false
	}
	st := get(stats)
	return st.Kind == kind && st.Length >= n
}

// parseCall parses "name(arg)".
func parseCall(cond, name string) (string, bool) {
	rest, found := strings.CutPrefix(cond, name)
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), true
}
