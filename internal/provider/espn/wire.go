package espn

import (
	"strconv"
	"strings"
	"time"

	"github.com/teamarr/teamarr/internal/sports"
)

// Site API response shapes. Only the fields we consume are declared; the
// API carries far more.

type scoreboardResponse struct {
	Events []wireEvent `json:"events"`
}

type scheduleResponse struct {
	Events []wireEvent `json:"events"`
}

type summaryResponse struct {
	Header struct {
		ID           string            `json:"id"`
		Competitions []wireCompetition `json:"competitions"`
	} `json:"header"`
}

type teamResponse struct {
	Team wireTeamDetail `json:"team"`
}

type leagueTeamsResponse struct {
	Sports []struct {
		Leagues []struct {
			Teams []struct {
				Team wireTeam `json:"team"`
			} `json:"teams"`
		} `json:"leagues"`
	} `json:"sports"`
}

type wireEvent struct {
	ID           string            `json:"id"`
	Date         string            `json:"date"`
	Name         string            `json:"name"`
	ShortName    string            `json:"shortName"`
	Competitions []wireCompetition `json:"competitions"`
	Season       struct {
		Type int `json:"type"` // 1 pre, 2 regular, 3 post
	} `json:"season"`
	Status wireStatus `json:"status"`
}

type wireCompetition struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Competitors []struct {
		ID          string   `json:"id"`
		HomeAway    string   `json:"homeAway"`
		Team        wireTeam `json:"team"`
		Score       string   `json:"score"`
		CuratedRank struct {
			Current int `json:"current"`
		} `json:"curatedRank"`
		Records []struct {
			Type    string `json:"type"` // "total", "home", "road"
			Summary string `json:"summary"`
		} `json:"records"`
	} `json:"competitors"`
	Venue struct {
		FullName string `json:"fullName"`
	} `json:"venue"`
	Broadcasts []struct {
		Names []string `json:"names"`
	} `json:"broadcasts"`
	Odds []struct {
		Details   string  `json:"details"`
		Spread    float64 `json:"spread"`
		OverUnder float64 `json:"overUnder"`
		HomeTeamOdds struct {
			MoneyLine int `json:"moneyLine"`
		} `json:"homeTeamOdds"`
		AwayTeamOdds struct {
			MoneyLine int `json:"moneyLine"`
		} `json:"awayTeamOdds"`
	} `json:"odds"`
	Status wireStatus `json:"status"`
}

type wireStatus struct {
	Type struct {
		Name      string `json:"name"` // STATUS_SCHEDULED, STATUS_IN_PROGRESS, ...
		State     string `json:"state"`
		Completed bool   `json:"completed"`
	} `json:"type"`
}

type wireTeam struct {
	ID           string `json:"id"`
	Location     string `json:"location"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	DisplayName  string `json:"displayName"`
	ShortDisplayName string `json:"shortDisplayName"`
	Slug         string `json:"slug"`
	Logos        []struct {
		Href string `json:"href"`
	} `json:"logos"`
	Logo string `json:"logo"`
}

type wireTeamDetail struct {
	wireTeam
	Rank            int    `json:"rank"`
	StandingSummary string `json:"standingSummary"` // e.g. "1st in AFC East"
	Record          struct {
		Items []struct {
			Type    string `json:"type"`
			Summary string `json:"summary"`
			Stats   []struct {
				Name  string  `json:"name"`
				Value float64 `json:"value"`
			} `json:"stats"`
		} `json:"items"`
	} `json:"record"`
}

// espnDate layouts: scoreboard uses minute precision, some endpoints emit
// seconds.
const (
	dateLayout        = "2006-01-02T15:04Z"
	dateLayoutSeconds = "2006-01-02T15:04:05Z"
)

func parseWireDate(s string) time.Time {
	for _, layout := range []string{dateLayout, dateLayoutSeconds, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func mapStatus(st wireStatus) sports.EventStatus {
	switch st.Type.Name {
	case "STATUS_SCHEDULED", "STATUS_DELAYED":
		return sports.StatusScheduled
	case "STATUS_IN_PROGRESS", "STATUS_HALFTIME", "STATUS_END_PERIOD", "STATUS_FIRST_HALF", "STATUS_SECOND_HALF":
		return sports.StatusInProgress
	case "STATUS_FINAL", "STATUS_FULL_TIME":
		return sports.StatusFinal
	case "STATUS_POSTPONED":
		return sports.StatusPostponed
	case "STATUS_CANCELED":
		return sports.StatusCanceled
	}
	switch st.Type.State {
	case "pre":
		return sports.StatusScheduled
	case "in":
		return sports.StatusInProgress
	case "post":
		return sports.StatusFinal
	}
	return sports.StatusScheduled
}

func (c *Client) convertTeam(w wireTeam, league string) sports.Team {
	info := leagues[league]
	logo := w.Logo
	if logo == "" && len(w.Logos) > 0 {
		logo = w.Logos[0].Href
	}
	return sports.Team{
		ID:           w.ID,
		Provider:     c.Name(),
		Name:         w.DisplayName,
		ShortName:    firstNonEmpty(w.ShortDisplayName, w.Name),
		Abbreviation: w.Abbreviation,
		Slug:         w.Slug,
		City:         w.Location,
		LogoURL:      logo,
		Sport:        info.Sport,
		League:       league,
	}
}

// convertEvent flattens one event + its first competition into the canonical
// shape. Tournament leagues without a home/away pair use the first two
// competitors as the main participants.
func (c *Client) convertEvent(w wireEvent, league string) sports.Event {
	info := leagues[league]
	ev := sports.Event{
		ID:        w.ID,
		League:    league,
		Sport:     info.Sport,
		StartTime: parseWireDate(w.Date),
		Status:    mapStatus(w.Status),
		ShortName: w.ShortName,
	}
	switch w.Season.Type {
	case 1:
		ev.SeasonType = "preseason"
	case 3:
		ev.SeasonType = "playoff"
	case 2:
		ev.SeasonType = "regular"
	}
	if len(w.Competitions) == 0 {
		return ev
	}
	comp := w.Competitions[0]
	c.fillFromCompetition(&ev, comp, league)
	return ev
}

func (c *Client) fillFromCompetition(ev *sports.Event, comp wireCompetition, league string) {
	if ev.StartTime.IsZero() {
		ev.StartTime = parseWireDate(comp.Date)
	}
	if comp.Status.Type.Name != "" {
		ev.Status = mapStatus(comp.Status)
	}
	ev.Venue = comp.Venue.FullName
	for _, b := range comp.Broadcasts {
		ev.Broadcast = append(ev.Broadcast, b.Names...)
	}

	var homeScore, awayScore int
	var haveScore bool
	for _, cm := range comp.Competitors {
		team := c.convertTeam(cm.Team, league)
		rec := recordFromWire(cm.Records)
		rank := cm.CuratedRank.Current
		// ESPN reports 99 for unranked teams.
		if rank >= 26 {
			rank = 0
		}
		isHome := cm.HomeAway != "away"
		if isHome && ev.Home.ID != "" {
			// Tournament shape: no homeAway markers, first two fill both
			// slots in order.
			isHome = false
		}
		if isHome {
			ev.Home = team
			ev.HomeRecord = rec
			ev.HomeRank = rank
		} else if ev.Away.ID == "" {
			ev.Away = team
			ev.AwayRecord = rec
			ev.AwayRank = rank
		}
		if n, err := strconv.Atoi(cm.Score); err == nil {
			haveScore = true
			if isHome {
				homeScore = n
			} else {
				awayScore = n
			}
		}
	}
	if haveScore {
		ev.Score = &sports.Score{Home: homeScore, Away: awayScore}
	}
	if len(comp.Odds) > 0 {
		o := comp.Odds[0]
		ev.Odds = &sports.Odds{
			Spread:        o.Spread,
			OverUnder:     o.OverUnder,
			HomeMoneyline: o.HomeTeamOdds.MoneyLine,
			AwayMoneyline: o.AwayTeamOdds.MoneyLine,
			Details:       o.Details,
		}
	}
}

func recordFromWire(records []struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
}) *sports.RecordSnapshot {
	for _, r := range records {
		if r.Type == "total" || r.Type == "" {
			return parseRecordSummary(r.Summary)
		}
	}
	return nil
}

// parseRecordSummary parses "10-2" or "8-4-1" into a snapshot. Returns nil
// for anything else.
func parseRecordSummary(s string) *sports.RecordSnapshot {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	rec := &sports.RecordSnapshot{Summary: s, Wins: nums[0], Losses: nums[1]}
	if len(nums) == 3 {
		rec.Draws = nums[2]
	}
	return rec
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
