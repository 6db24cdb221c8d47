package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const mlbBase = "https://statsapi.mlb.com/api/v1.1"

// MLB reads the Stats API live feed of one game (gamePk).
type MLB struct {
	base string
}

func NewMLB(baseURL string) *MLB {
	if baseURL == "" {
		baseURL = mlbBase
	}
	return &MLB{base: strings.TrimRight(baseURL, "/")}
}

func (f *MLB) Sport() string { return "mlb" }

func (f *MLB) URL(gamePk string) string {
	return fmt.Sprintf("%s/game/%s/feed/live", f.base, gamePk)
}

type mlbTeam struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type mlbFeed struct {
	GamePk   int `json:"gamePk"`
	GameData struct {
		Datetime struct {
			DateTime Time `json:"dateTime"`
		} `json:"datetime"`
		Status struct {
			AbstractGameState string `json:"abstractGameState"`
			DetailedState     string `json:"detailedState"`
		} `json:"status"`
		Teams struct {
			Home mlbTeam `json:"home"`
			Away mlbTeam `json:"away"`
		} `json:"teams"`
		Venue struct {
			Name     string `json:"name"`
			Location struct {
				City string `json:"city"`
			} `json:"location"`
		} `json:"venue"`
	} `json:"gameData"`
	LiveData struct {
		Linescore struct {
			CurrentInning int    `json:"currentInning"`
			InningHalf    string `json:"inningHalf"`
			Teams         struct {
				Home struct {
					Runs int `json:"runs"`
				} `json:"home"`
				Away struct {
					Runs int `json:"runs"`
				} `json:"away"`
			} `json:"teams"`
		} `json:"linescore"`
		Plays struct {
			AllPlays []struct {
				About struct {
					AtBatIndex    int    `json:"atBatIndex"`
					Inning        int    `json:"inning"`
					HalfInning    string `json:"halfInning"`
					IsScoringPlay bool   `json:"isScoringPlay"`
				} `json:"about"`
				Result struct {
					Event       string `json:"event"`
					Description string `json:"description"`
					HomeScore   int    `json:"homeScore"`
					AwayScore   int    `json:"awayScore"`
				} `json:"result"`
			} `json:"allPlays"`
		} `json:"plays"`
	} `json:"liveData"`
}

func (f *MLB) Decode(_ context.Context, body []byte, _ Getter) (Event, error) {
	var doc mlbFeed
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("mlb live feed: %w", err)
	}
	gd, ld := doc.GameData, doc.LiveData

	ev := Event{
		Sport:  "mlb",
		State:  mlbState(gd.Status.AbstractGameState),
		Detail: gd.Status.DetailedState,
		Period: ld.Linescore.CurrentInning,
		Clock:  ld.Linescore.InningHalf,
		Start:  gd.Datetime.DateTime.Time,
		Venue:  Venue{Name: gd.Venue.Name, City: gd.Venue.Location.City},
	}
	if doc.GamePk != 0 {
		ev.ID = strconv.Itoa(doc.GamePk)
	}
	if gd.Teams.Home.ID != 0 && gd.Teams.Away.ID != 0 {
		ev.Competitors = []Competitor{
			mlbCompetitor(gd.Teams.Home, "home", ld.Linescore.Teams.Home.Runs),
			mlbCompetitor(gd.Teams.Away, "away", ld.Linescore.Teams.Away.Runs),
		}
		ev.Name = gd.Teams.Away.Name + " at " + gd.Teams.Home.Name
	}

	all := ld.Plays.AllPlays
	ev.Plays = make([]Play, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		p := all[i]
		if p.Result.Description == "" {
			// At-bat still in progress.
			continue
		}
		team := gd.Teams.Away.Abbreviation
		if p.About.HalfInning == "bottom" {
			team = gd.Teams.Home.Abbreviation
		}
		ev.Plays = append(ev.Plays, Play{
			ID:        strconv.Itoa(p.About.AtBatIndex),
			Period:    p.About.Inning,
			Clock:     p.About.HalfInning,
			Team:      team,
			Text:      p.Result.Description,
			Scoring:   p.About.IsScoringPlay,
			HomeScore: p.Result.HomeScore,
			AwayScore: p.Result.AwayScore,
		})
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func mlbCompetitor(t mlbTeam, homeAway string, runs int) Competitor {
	return Competitor{
		ID:           strconv.Itoa(t.ID),
		Name:         t.Name,
		Abbreviation: t.Abbreviation,
		HomeAway:     homeAway,
		Score:        runs,
	}
}

func mlbState(abstract string) State {
	switch abstract {
	case "Preview":
		return StatePre
	case "Live":
		return StateIn
	case "Final":
		return StatePost
	}
	return ""
}
