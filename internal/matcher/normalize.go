// Package matcher turns opaque IPTV stream names into resolved events. The
// pipeline is: normalise the raw name, split on a game indicator, select
// candidate leagues through the team/league cache, run a tiered team match
// per league, then resolve the concrete event through the data service. A
// per-stream fingerprint cache short-circuits repeat work across runs.
package matcher

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clock is a wall-clock time extracted from a stream name, minutes from
// midnight in the stream's display timezone.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

// Normalized is the outcome of the normalisation pipeline: cleaned text plus
// the date/time/rank tokens lifted out of it.
type Normalized struct {
	Text  string
	Date  *time.Time // date only, midnight UTC
	Clock *Clock
	Ranks []int // poll ranks seen left to right, e.g. "#8"
}

// DefaultRegionTokens is the allowlist of tokens that mark a bracketed
// segment as region/provider noise rather than content.
var DefaultRegionTokens = []string{
	"uk", "us", "usa", "ca", "de", "fr", "es", "au", "nz", "ie",
	"hd", "fhd", "uhd", "sd", "4k", "1080p", "720p", "50fps", "60fps",
	"sky", "sky+", "bt", "tnt", "dazn", "espn", "espn+", "fox", "cbs",
	"nbc", "abc", "peacock", "prime", "vip", "multi", "backup", "feed",
}

// leaguePrefixes are the leading tokens stripped in step 4. Longest first so
// "ncaaf" wins over "ncaa".
var leaguePrefixes = []string{
	"ncaaf", "ncaab", "ncaa", "nfl", "nba", "wnba", "mlb", "nhl", "mls",
	"epl", "efl", "laliga", "la liga", "bundesliga", "serie a", "ligue 1",
	"soccer", "football", "basketball", "baseball", "hockey",
}

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	namedDateRe = regexp.MustCompile(`\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})\b`)
	clockRe     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(am|pm)?\s*(et|est|edt|ct|cst|cdt|mt|mst|mdt|pt|pst|pdt|gmt|utc|bst|cet)?\b`)
	chanIndexRe = regexp.MustCompile(`^\s*\d{1,4}\s*[-|:.]\s*`)
	rankRe      = regexp.MustCompile(`#\s*(\d{1,2})\b`)
	separatorRe = regexp.MustCompile(`[|:\-#()\[\]]+`)
	spaceRe     = regexp.MustCompile(`\s{2,}`)
	bracketRe   = regexp.MustCompile(`\(([^)]*)\)|\[([^\]]*)\]`)
)

var monthByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// abbreviations is the fixed expansion table of step 8, applied on word
// boundaries after everything else.
var abbreviations = map[string]string{
	"fn":  "fight night",
	"ppv": "pay per view",
	"v":   "versus",
	"vs":  "versus",
	"vs.": "versus",
	"@":   "at",
}

// Normalizer applies the deterministic normalisation pipeline. Zero value
// not usable; build with NewNormalizer.
type Normalizer struct {
	regionTokens map[string]bool
	now          func() time.Time
}

func NewNormalizer(regionTokens []string) *Normalizer {
	if regionTokens == nil {
		regionTokens = DefaultRegionTokens
	}
	set := make(map[string]bool, len(regionTokens))
	for _, t := range regionTokens {
		set[strings.ToLower(t)] = true
	}
	return &Normalizer{regionTokens: set, now: time.Now}
}

// Normalize runs the full pipeline over raw.
func (n *Normalizer) Normalize(raw string) Normalized {
	var out Normalized
	s := stripDiacritics(raw)
	s = strings.ToLower(s)
	s = n.stripRegionBrackets(s)
	s = stripLeaguePrefix(s)
	s, out.Date = n.maskDates(s)
	s, out.Clock = maskClock(s)
	s, out.Ranks = extractRanks(s)
	s = chanIndexRe.ReplaceAllString(s, " ")
	s = separatorRe.ReplaceAllString(s, " ")
	s = expandAbbreviations(s)
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	out.Text = s
	return out
}

// stripDiacritics decomposes to NFKD and drops combining marks, so accented
// club names compare against ASCII stream text.
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// stripRegionBrackets removes bracketed segments whose every token is on the
// region/provider allowlist (tokens like "08" count as noise too). Brackets
// with real content, a date say, stay for later steps.
func (n *Normalizer) stripRegionBrackets(s string) string {
	return bracketRe.ReplaceAllStringFunc(s, func(seg string) string {
		inner := strings.Trim(seg, "()[]")
		fields := strings.Fields(inner)
		if len(fields) == 0 {
			return " "
		}
		for _, f := range fields {
			if n.regionTokens[f] {
				continue
			}
			if _, err := strconv.Atoi(f); err == nil {
				continue
			}
			return seg
		}
		return " "
	})
}

func stripLeaguePrefix(s string) string {
	s = strings.TrimLeft(s, " |:-")
	for _, p := range leaguePrefixes {
		if strings.HasPrefix(s, p) {
			rest := s[len(p):]
			if rest == "" {
				return ""
			}
			r := rune(rest[0])
			if r == ' ' || r == '|' || r == ':' || r == '-' {
				return strings.TrimLeft(rest, " |:-")
			}
		}
	}
	return s
}

// maskDates removes date patterns and returns the first one found. Year-less
// forms resolve to the nearest occurrence not more than six months past.
func (n *Normalizer) maskDates(s string) (string, *time.Time) {
	var date *time.Time
	record := func(t time.Time) {
		if date == nil {
			date = &t
		}
	}

	s = isoDateRe.ReplaceAllStringFunc(s, func(m string) string {
		g := isoDateRe.FindStringSubmatch(m)
		y, _ := strconv.Atoi(g[1])
		mo, _ := strconv.Atoi(g[2])
		d, _ := strconv.Atoi(g[3])
		record(time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC))
		return " "
	})
	s = namedDateRe.ReplaceAllStringFunc(s, func(m string) string {
		g := namedDateRe.FindStringSubmatch(m)
		d, _ := strconv.Atoi(g[2])
		record(n.inferYear(monthByPrefix[g[1]], d))
		return " "
	})
	s = usDateRe.ReplaceAllStringFunc(s, func(m string) string {
		g := usDateRe.FindStringSubmatch(m)
		mo, _ := strconv.Atoi(g[1])
		d, _ := strconv.Atoi(g[2])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			return m
		}
		if g[3] != "" {
			y, _ := strconv.Atoi(g[3])
			if y < 100 {
				y += 2000
			}
			record(time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC))
		} else {
			record(n.inferYear(time.Month(mo), d))
		}
		return " "
	})
	return s, date
}

// inferYear picks the year making (month, day) land within [-6mo, +6mo] of
// now. Stream names never carry dates a season away.
func (n *Normalizer) inferYear(month time.Month, day int) time.Time {
	now := n.now().UTC()
	t := time.Date(now.Year(), month, day, 0, 0, 0, 0, time.UTC)
	switch {
	case t.Before(now.AddDate(0, -6, 0)):
		return t.AddDate(1, 0, 0)
	case t.After(now.AddDate(0, 6, 0)):
		return t.AddDate(-1, 0, 0)
	default:
		return t
	}
}

func maskClock(s string) (string, *Clock) {
	var clock *Clock
	s = clockRe.ReplaceAllStringFunc(s, func(m string) string {
		g := clockRe.FindStringSubmatch(m)
		h, _ := strconv.Atoi(g[1])
		min, _ := strconv.Atoi(g[2])
		if h > 23 || min > 59 {
			return m
		}
		switch g[3] {
		case "pm":
			if h < 12 {
				h += 12
			}
		case "am":
			if h == 12 {
				h = 0
			}
		}
		if clock == nil {
			clock = &Clock{Hour: h, Minute: min}
		}
		return " "
	})
	return s, clock
}

func extractRanks(s string) (string, []int) {
	var ranks []int
	s = rankRe.ReplaceAllStringFunc(s, func(m string) string {
		g := rankRe.FindStringSubmatch(m)
		r, _ := strconv.Atoi(g[1])
		ranks = append(ranks, r)
		return " "
	})
	return s, ranks
}

func expandAbbreviations(s string) string {
	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if exp, ok := abbreviations[f]; ok {
			out = append(out, exp)
		} else {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// String implements fmt.Stringer for debug logging.
func (n Normalized) String() string {
	parts := []string{fmt.Sprintf("%q", n.Text)}
	if n.Date != nil {
		parts = append(parts, n.Date.Format("2006-01-02"))
	}
	if n.Clock != nil {
		parts = append(parts, fmt.Sprintf("%02d:%02d", n.Clock.Hour, n.Clock.Minute))
	}
	return strings.Join(parts, " ")
}
