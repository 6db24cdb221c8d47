package feeds

import (
	"fmt"
	"strings"
	"time"

	"live-scoreboard/poll"
)

// State is the coarse lifecycle of an event, normalised across feeds.
type State string

const (
	StatePre  State = "pre"
	StateIn   State = "in"
	StatePost State = "post"
)

// Event is the snapshot every feed decodes into. Competitors are ordered
// home first for team sports and by classification for races. Plays are
// newest first.
type Event struct {
	ID          string       `json:"id"`
	Sport       string       `json:"sport"`
	Name        string       `json:"name"`
	State       State        `json:"state"`
	Detail      string       `json:"detail"`
	Period      int          `json:"period"`
	Clock       string       `json:"clock"`
	Start       time.Time    `json:"start"`
	Venue       Venue        `json:"venue"`
	Competitors []Competitor `json:"competitors"`
	Plays       []Play       `json:"plays"`
}

type Venue struct {
	Name    string  `json:"name"`
	City    string  `json:"city"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat,omitempty"`
	Long    float64 `json:"long,omitempty"`
}

type Competitor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	HomeAway     string `json:"home_away,omitempty"`
	Score        int    `json:"score"`
	Position     int    `json:"position,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ConferenceID string `json:"conference_id,omitempty"`
}

// Play is one entry of a play-by-play list. ID is stable across fetches.
type Play struct {
	ID        string `json:"id"`
	Period    int    `json:"period"`
	Clock     string `json:"clock"`
	Team      string `json:"team"`
	Text      string `json:"text"`
	Scoring   bool   `json:"scoring"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

// IsFinal reports whether the event is over. It is the termination predicate
// of every session.
func IsFinal(e Event) bool {
	return e.State == StatePost
}

// Home returns the home competitor.
func (e Event) Home() (Competitor, bool) {
	return e.side("home")
}

// Away returns the away competitor.
func (e Event) Away() (Competitor, bool) {
	return e.side("away")
}

func (e Event) side(homeAway string) (Competitor, bool) {
	for _, c := range e.Competitors {
		if c.HomeAway == homeAway {
			return c, true
		}
	}
	return Competitor{}, false
}

// ScoreLine renders "AWY 3 - 4 HOM" for team sports and the leader for races.
func (e Event) ScoreLine() string {
	home, okH := e.Home()
	away, okA := e.Away()
	if okH && okA {
		return fmt.Sprintf("%s %d - %d %s", away.Abbreviation, away.Score, home.Score, home.Abbreviation)
	}
	if len(e.Competitors) > 0 {
		lead := e.Competitors[0]
		return fmt.Sprintf("P%d %s", lead.Position, lead.Name)
	}
	return e.Name
}

// Leader returns the abbreviation of the team ahead, or "" when level.
func (e Event) Leader() string {
	home, okH := e.Home()
	away, okA := e.Away()
	if !okH || !okA {
		return ""
	}
	switch {
	case home.Score > away.Score:
		return home.Abbreviation
	case away.Score > home.Score:
		return away.Abbreviation
	}
	return ""
}

// Validate rejects events that parsed but miss the fields every view needs.
func (e Event) Validate() error {
	var missing []string
	if e.ID == "" {
		missing = append(missing, "id")
	}
	if e.State == "" {
		missing = append(missing, "state")
	}
	if len(e.Competitors) == 0 && e.State != StatePre {
		missing = append(missing, "competitors")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", poll.ErrIncomplete, strings.Join(missing, ", "))
	}
	return nil
}
