package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const espnBase = "https://site.api.espn.com/apis/site/v2/sports"

// ESPN reads the site API game summary for any ESPN league.
type ESPN struct {
	sport  string
	league string
	base   string
}

func NewESPN(sport, league, baseURL string) *ESPN {
	if baseURL == "" {
		baseURL = espnBase
	}
	return &ESPN{sport: sport, league: league, base: strings.TrimRight(baseURL, "/")}
}

func (f *ESPN) Sport() string { return f.league }

func (f *ESPN) URL(eventID string) string {
	return fmt.Sprintf("%s/%s/%s/summary?event=%s", f.base, f.sport, f.league, eventID)
}

// ScoreboardURL is the league-wide scoreboard used for game discovery.
func (f *ESPN) ScoreboardURL() string {
	return fmt.Sprintf("%s/%s/%s/scoreboard", f.base, f.sport, f.league)
}

type espnSummary struct {
	Header struct {
		ID           string            `json:"id"`
		Competitions []espnCompetition `json:"competitions"`
	} `json:"header"`
	GameInfo struct {
		Venue struct {
			FullName string `json:"fullName"`
			Address  struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"address"`
		} `json:"venue"`
	} `json:"gameInfo"`
	ScoringPlays []espnPlay `json:"scoringPlays"`
}

type espnScoreboard struct {
	Events []struct {
		ID           string            `json:"id"`
		Name         string            `json:"name"`
		Date         Time              `json:"date"`
		Competitions []espnCompetition `json:"competitions"`
	} `json:"events"`
}

type espnCompetition struct {
	ID          string           `json:"id"`
	Date        Time             `json:"date"`
	Status      espnStatus       `json:"status"`
	Competitors []espnCompetitor `json:"competitors"`
}

type espnStatus struct {
	DisplayClock string `json:"displayClock"`
	Period       int    `json:"period"`
	Type         struct {
		State       string `json:"state"`
		Completed   bool   `json:"completed"`
		Detail      string `json:"detail"`
		ShortDetail string `json:"shortDetail"`
	} `json:"type"`
}

type espnCompetitor struct {
	ID       string `json:"id"`
	HomeAway string `json:"homeAway"`
	Score    string `json:"score"`
	Team     struct {
		ID           string `json:"id"`
		DisplayName  string `json:"displayName"`
		Abbreviation string `json:"abbreviation"`
		ConferenceID string `json:"conferenceId"`
	} `json:"team"`
}

type espnPlay struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	AwayScore int    `json:"awayScore"`
	HomeScore int    `json:"homeScore"`
	Period    struct {
		Number int `json:"number"`
	} `json:"period"`
	Clock struct {
		DisplayValue string `json:"displayValue"`
	} `json:"clock"`
	Team struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"team"`
}

func (f *ESPN) Decode(_ context.Context, body []byte, _ Getter) (Event, error) {
	var doc espnSummary
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("espn summary: %w", err)
	}
	ev := Event{ID: doc.Header.ID, Sport: f.league}
	if len(doc.Header.Competitions) > 0 {
		comp := doc.Header.Competitions[0]
		ev.applyCompetition(comp)
	}
	ev.Venue = Venue{
		Name: doc.GameInfo.Venue.FullName,
		City: joinNonEmpty(", ", doc.GameInfo.Venue.Address.City, doc.GameInfo.Venue.Address.State),
	}

	// Scoring plays arrive oldest first.
	ev.Plays = make([]Play, 0, len(doc.ScoringPlays))
	for i := len(doc.ScoringPlays) - 1; i >= 0; i-- {
		p := doc.ScoringPlays[i]
		ev.Plays = append(ev.Plays, Play{
			ID:        p.ID,
			Period:    p.Period.Number,
			Clock:     p.Clock.DisplayValue,
			Team:      p.Team.Abbreviation,
			Text:      p.Text,
			Scoring:   true,
			HomeScore: p.HomeScore,
			AwayScore: p.AwayScore,
		})
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (ev *Event) applyCompetition(comp espnCompetition) {
	ev.State = espnState(comp.Status.Type.State, comp.Status.Type.Completed)
	ev.Detail = comp.Status.Type.ShortDetail
	if ev.Detail == "" {
		ev.Detail = comp.Status.Type.Detail
	}
	ev.Period = comp.Status.Period
	ev.Clock = comp.Status.DisplayClock
	ev.Start = comp.Date.Time

	var home, away Competitor
	for _, c := range comp.Competitors {
		cp := Competitor{
			ID:           c.Team.ID,
			Name:         c.Team.DisplayName,
			Abbreviation: c.Team.Abbreviation,
			HomeAway:     c.HomeAway,
			Score:        atoi(c.Score),
			ConferenceID: c.Team.ConferenceID,
		}
		if c.HomeAway == "home" {
			home = cp
		} else {
			away = cp
		}
	}
	if home.ID != "" || away.ID != "" {
		ev.Competitors = []Competitor{home, away}
		ev.Name = away.Name + " at " + home.Name
	}
}

func espnState(state string, completed bool) State {
	switch {
	case completed || state == "post":
		return StatePost
	case state == "in":
		return StateIn
	case state == "pre":
		return StatePre
	}
	return ""
}

// Game is one entry of a league scoreboard, used to discover what to track.
type Game struct {
	ID      string     `json:"id"`
	EventID string     `json:"event_id"`
	Sport   string     `json:"sport"`
	Name    string     `json:"name"`
	Home    Competitor `json:"home"`
	Away    Competitor `json:"away"`
	Start   time.Time  `json:"start"`
	State   State      `json:"state"`
}

// Involves reports whether either side matches one of the team IDs or
// conference IDs. Empty filters match everything.
func (g Game) Involves(teams, conferences []string) bool {
	if len(teams) == 0 && len(conferences) == 0 {
		return true
	}
	for _, c := range []Competitor{g.Home, g.Away} {
		for _, t := range teams {
			if strings.EqualFold(t, c.ID) || strings.EqualFold(t, c.Abbreviation) {
				return true
			}
		}
		for _, conf := range conferences {
			if conf != "" && conf == c.ConferenceID {
				return true
			}
		}
	}
	return false
}

// ParseScoreboard decodes a league scoreboard into games.
func (f *ESPN) ParseScoreboard(body []byte) ([]Game, error) {
	var doc espnScoreboard
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("espn scoreboard: %w", err)
	}
	games := make([]Game, 0, len(doc.Events))
	for _, e := range doc.Events {
		if len(e.Competitions) == 0 || len(e.Competitions[0].Competitors) < 2 {
			continue
		}
		var ev Event
		ev.applyCompetition(e.Competitions[0])
		home, _ := ev.Home()
		away, _ := ev.Away()
		start := e.Competitions[0].Date.Time
		if start.IsZero() {
			start = e.Date.Time
		}
		games = append(games, Game{
			ID:      e.Competitions[0].ID,
			EventID: e.ID,
			Sport:   f.league,
			Name:    e.Name,
			Home:    home,
			Away:    away,
			Start:   start,
			State:   ev.State,
		})
	}
	return games, nil
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
