package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const nhlBase = "https://api-web.nhle.com/v1"

// NHL reads the gamecenter play-by-play document.
type NHL struct {
	base string
}

func NewNHL(baseURL string) *NHL {
	if baseURL == "" {
		baseURL = nhlBase
	}
	return &NHL{base: strings.TrimRight(baseURL, "/")}
}

func (f *NHL) Sport() string { return "nhl" }

func (f *NHL) URL(gameID string) string {
	return fmt.Sprintf("%s/gamecenter/%s/play-by-play", f.base, gameID)
}

type nhlName struct {
	Default string `json:"default"`
}

type nhlTeam struct {
	ID         int     `json:"id"`
	Abbrev     string  `json:"abbrev"`
	Score      int     `json:"score"`
	CommonName nhlName `json:"commonName"`
	PlaceName  nhlName `json:"placeName"`
}

type nhlPeriod struct {
	Number     int    `json:"number"`
	PeriodType string `json:"periodType"`
}

type nhlPlayByPlay struct {
	ID               int       `json:"id"`
	GameState        string    `json:"gameState"`
	StartTimeUTC     Time      `json:"startTimeUTC"`
	Venue            nhlName   `json:"venue"`
	VenueLocation    nhlName   `json:"venueLocation"`
	HomeTeam         nhlTeam   `json:"homeTeam"`
	AwayTeam         nhlTeam   `json:"awayTeam"`
	PeriodDescriptor nhlPeriod `json:"periodDescriptor"`
	Clock            struct {
		TimeRemaining  string `json:"timeRemaining"`
		InIntermission bool   `json:"inIntermission"`
	} `json:"clock"`
	Plays []struct {
		EventID          int       `json:"eventId"`
		TypeDescKey      string    `json:"typeDescKey"`
		PeriodDescriptor nhlPeriod `json:"periodDescriptor"`
		TimeInPeriod     string    `json:"timeInPeriod"`
		Details          struct {
			EventOwnerTeamID int `json:"eventOwnerTeamId"`
			HomeScore        int `json:"homeScore"`
			AwayScore        int `json:"awayScore"`
		} `json:"details"`
	} `json:"plays"`
}

func (f *NHL) Decode(_ context.Context, body []byte, _ Getter) (Event, error) {
	var doc nhlPlayByPlay
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("nhl play-by-play: %w", err)
	}

	ev := Event{
		Sport:  "nhl",
		State:  nhlState(doc.GameState),
		Detail: nhlDetail(doc),
		Period: doc.PeriodDescriptor.Number,
		Clock:  doc.Clock.TimeRemaining,
		Start:  doc.StartTimeUTC.Time,
		Venue:  Venue{Name: doc.Venue.Default, City: doc.VenueLocation.Default},
	}
	if doc.ID != 0 {
		ev.ID = strconv.Itoa(doc.ID)
	}
	if doc.HomeTeam.ID != 0 && doc.AwayTeam.ID != 0 {
		ev.Competitors = []Competitor{
			nhlCompetitor(doc.HomeTeam, "home"),
			nhlCompetitor(doc.AwayTeam, "away"),
		}
		ev.Name = nhlTeamName(doc.AwayTeam) + " at " + nhlTeamName(doc.HomeTeam)
	}

	owners := map[int]string{
		doc.HomeTeam.ID: doc.HomeTeam.Abbrev,
		doc.AwayTeam.ID: doc.AwayTeam.Abbrev,
	}
	ev.Plays = make([]Play, 0, len(doc.Plays))
	for i := len(doc.Plays) - 1; i >= 0; i-- {
		p := doc.Plays[i]
		ev.Plays = append(ev.Plays, Play{
			ID:        strconv.Itoa(p.EventID),
			Period:    p.PeriodDescriptor.Number,
			Clock:     p.TimeInPeriod,
			Team:      owners[p.Details.EventOwnerTeamID],
			Text:      strings.ReplaceAll(p.TypeDescKey, "-", " "),
			Scoring:   p.TypeDescKey == "goal",
			HomeScore: p.Details.HomeScore,
			AwayScore: p.Details.AwayScore,
		})
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func nhlCompetitor(t nhlTeam, homeAway string) Competitor {
	return Competitor{
		ID:           strconv.Itoa(t.ID),
		Name:         nhlTeamName(t),
		Abbreviation: t.Abbrev,
		HomeAway:     homeAway,
		Score:        t.Score,
	}
}

func nhlTeamName(t nhlTeam) string {
	return strings.TrimSpace(t.PlaceName.Default + " " + t.CommonName.Default)
}

func nhlState(s string) State {
	switch s {
	case "FUT", "PRE":
		return StatePre
	case "LIVE", "CRIT":
		return StateIn
	case "FINAL", "OFF":
		return StatePost
	}
	return ""
}

func nhlDetail(doc nhlPlayByPlay) string {
	switch {
	case nhlState(doc.GameState) == StatePost:
		if doc.PeriodDescriptor.PeriodType != "" && doc.PeriodDescriptor.PeriodType != "REG" {
			return "Final/" + doc.PeriodDescriptor.PeriodType
		}
		return "Final"
	case doc.Clock.InIntermission:
		return fmt.Sprintf("End of P%d", doc.PeriodDescriptor.Number)
	case nhlState(doc.GameState) == StateIn:
		return fmt.Sprintf("P%d %s", doc.PeriodDescriptor.Number, doc.Clock.TimeRemaining)
	}
	return "Scheduled"
}
