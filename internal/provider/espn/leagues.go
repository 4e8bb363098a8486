package espn

import "sort"

// leagueInfo maps a canonical league slug to the site API path pair and the
// sport name used for duration defaults.
type leagueInfo struct {
	SportPath  string // e.g. "football"
	LeaguePath string // e.g. "nfl" or "eng.1"
	Sport      string // canonical sport, e.g. "football", "soccer"
	Name       string
}

// leagues is the supported-league table. Soccer leagues route through the
// shared "soccer" sport path with their own slug.
var leagues = map[string]leagueInfo{
	"nfl":   {"football", "nfl", "football", "NFL"},
	"ncaaf": {"football", "college-football", "football", "NCAA Football"},
	"nba":   {"basketball", "nba", "basketball", "NBA"},
	"wnba":  {"basketball", "wnba", "basketball", "WNBA"},
	"ncaab": {"basketball", "mens-college-basketball", "basketball", "NCAA Basketball"},
	"mlb":   {"baseball", "mlb", "baseball", "MLB"},
	"nhl":   {"hockey", "nhl", "hockey", "NHL"},
	"ufc":   {"mma", "ufc", "mma", "UFC"},
	"pga":   {"golf", "pga", "golf", "PGA Tour"},
	"f1":    {"racing", "f1", "racing", "Formula 1"},
	"atp":   {"tennis", "atp", "tennis", "ATP Tour"},

	// Soccer: league slug doubles as the ESPN path slug.
	"usa.1":          {"soccer", "usa.1", "soccer", "MLS"},
	"eng.1":          {"soccer", "eng.1", "soccer", "Premier League"},
	"eng.2":          {"soccer", "eng.2", "soccer", "EFL Championship"},
	"eng.fa":         {"soccer", "eng.fa", "soccer", "FA Cup"},
	"esp.1":          {"soccer", "esp.1", "soccer", "La Liga"},
	"ger.1":          {"soccer", "ger.1", "soccer", "Bundesliga"},
	"ita.1":          {"soccer", "ita.1", "soccer", "Serie A"},
	"fra.1":          {"soccer", "fra.1", "soccer", "Ligue 1"},
	"ned.1":          {"soccer", "ned.1", "soccer", "Eredivisie"},
	"por.1":          {"soccer", "por.1", "soccer", "Primeira Liga"},
	"mex.1":          {"soccer", "mex.1", "soccer", "Liga MX"},
	"uefa.champions": {"soccer", "uefa.champions", "soccer", "Champions League"},
	"uefa.europa":    {"soccer", "uefa.europa", "soccer", "Europa League"},
}

// SoccerLeagues returns every supported soccer slug, for "soccer_all"
// pseudo-group expansion.
func SoccerLeagues() []string {
	var out []string
	for slug, info := range leagues {
		if info.Sport == "soccer" {
			out = append(out, slug)
		}
	}
	sort.Strings(out)
	return out
}
