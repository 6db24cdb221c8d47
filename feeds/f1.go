package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"live-scoreboard/poll"
)

const f1Base = "https://api.jolpi.ca/ergast/f1"

// F1 reads race results from the Ergast-compatible API. The resource is
// "<season>/<round>". Circuit coordinates come from a derived fetch that is
// cached per circuit; a race without results falls back to the schedule
// entry and is reported as not started.
type F1 struct {
	base string

	mu       sync.Mutex
	circuits map[string]Venue
}

func NewF1(baseURL string) *F1 {
	if baseURL == "" {
		baseURL = f1Base
	}
	return &F1{base: strings.TrimRight(baseURL, "/"), circuits: make(map[string]Venue)}
}

func (f *F1) Sport() string { return "f1" }

func (f *F1) URL(resource string) string {
	return fmt.Sprintf("%s/%s/results.json", f.base, strings.Trim(resource, "/"))
}

type f1Location struct {
	Lat      string `json:"lat"`
	Long     string `json:"long"`
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

type f1Circuit struct {
	CircuitID   string     `json:"circuitId"`
	CircuitName string     `json:"circuitName"`
	Location    f1Location `json:"Location"`
}

type f1Race struct {
	Season   string    `json:"season"`
	Round    string    `json:"round"`
	RaceName string    `json:"raceName"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Circuit  f1Circuit `json:"Circuit"`
	Results  []struct {
		Number   string `json:"number"`
		Position string `json:"position"`
		Points   string `json:"points"`
		Status   string `json:"status"`
		Laps     string `json:"laps"`
		Driver   struct {
			DriverID   string `json:"driverId"`
			Code       string `json:"code"`
			GivenName  string `json:"givenName"`
			FamilyName string `json:"familyName"`
		} `json:"Driver"`
		Constructor struct {
			Name string `json:"name"`
		} `json:"Constructor"`
		Time struct {
			Time string `json:"time"`
		} `json:"Time"`
	} `json:"Results"`
}

type f1Document struct {
	MRData struct {
		RaceTable struct {
			Season string   `json:"season"`
			Round  string   `json:"round"`
			Races  []f1Race `json:"Races"`
		} `json:"RaceTable"`
		CircuitTable struct {
			Circuits []f1Circuit `json:"Circuits"`
		} `json:"CircuitTable"`
	} `json:"MRData"`
}

func (f *F1) Decode(ctx context.Context, body []byte, get Getter) (Event, error) {
	var doc f1Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("f1 results: %w", err)
	}
	table := doc.MRData.RaceTable

	if len(table.Races) == 0 {
		if table.Season == "" || table.Round == "" {
			return Event{}, fmt.Errorf("%w: race table", poll.ErrIncomplete)
		}
		return f.scheduled(ctx, table.Season, table.Round, get)
	}

	race := table.Races[0]
	ev := f.raceEvent(race)
	ev.State = StatePost
	ev.Detail = "Final"

	ev.Competitors = make([]Competitor, 0, len(race.Results))
	for _, r := range race.Results {
		detail := r.Time.Time
		if detail == "" {
			detail = r.Status
		}
		points, _ := strconv.ParseFloat(r.Points, 64)
		ev.Competitors = append(ev.Competitors, Competitor{
			ID:           r.Driver.DriverID,
			Name:         strings.TrimSpace(r.Driver.GivenName + " " + r.Driver.FamilyName),
			Abbreviation: r.Driver.Code,
			Position:     atoi(r.Position),
			Score:        int(points),
			Detail:       joinNonEmpty(" · ", r.Constructor.Name, detail),
		})
	}

	venue, err := f.circuit(ctx, race.Circuit, get)
	if err != nil {
		return Event{}, err
	}
	ev.Venue = venue

	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}

func (f *F1) scheduled(ctx context.Context, season, round string, get Getter) (Event, error) {
	body, err := get(ctx, fmt.Sprintf("%s/%s/%s.json", f.base, season, round))
	if err != nil {
		return Event{}, fmt.Errorf("f1 schedule: %w", err)
	}
	var doc f1Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Event{}, fmt.Errorf("f1 schedule: %w", err)
	}
	if len(doc.MRData.RaceTable.Races) == 0 {
		return Event{}, fmt.Errorf("%w: no race %s/%s in schedule", poll.ErrIncomplete, season, round)
	}
	race := doc.MRData.RaceTable.Races[0]
	ev := f.raceEvent(race)
	ev.State = StatePre
	ev.Detail = "Scheduled"

	venue, err := f.circuit(ctx, race.Circuit, get)
	if err != nil {
		return Event{}, err
	}
	ev.Venue = venue
	return ev, ev.Validate()
}

func (f *F1) raceEvent(race f1Race) Event {
	ev := Event{
		ID:    race.Season + "-" + race.Round,
		Sport: "f1",
		Name:  race.RaceName,
	}
	if race.Date != "" {
		stamp := race.Date
		if race.Time != "" {
			stamp += "T" + race.Time
		}
		if t, err := ParseTime(stamp); err == nil {
			ev.Start = t
		}
	}
	return ev
}

// circuit returns the venue of c, fetching coordinates once per circuit.
func (f *F1) circuit(ctx context.Context, c f1Circuit, get Getter) (Venue, error) {
	if c.CircuitID == "" {
		return Venue{Name: c.CircuitName, City: c.Location.Locality, Country: c.Location.Country}, nil
	}
	f.mu.Lock()
	v, ok := f.circuits[c.CircuitID]
	f.mu.Unlock()
	if ok {
		return v, nil
	}

	body, err := get(ctx, fmt.Sprintf("%s/circuits/%s.json", f.base, c.CircuitID))
	if err != nil {
		return Venue{}, fmt.Errorf("f1 circuit %s: %w", c.CircuitID, err)
	}
	var doc f1Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Venue{}, fmt.Errorf("f1 circuit %s: %w", c.CircuitID, err)
	}
	full := c
	if cs := doc.MRData.CircuitTable.Circuits; len(cs) > 0 {
		full = cs[0]
	}
	lat, _ := strconv.ParseFloat(full.Location.Lat, 64)
	long, _ := strconv.ParseFloat(full.Location.Long, 64)
	v = Venue{
		Name:    full.CircuitName,
		City:    full.Location.Locality,
		Country: full.Location.Country,
		Lat:     lat,
		Long:    long,
	}

	f.mu.Lock()
	f.circuits[c.CircuitID] = v
	f.mu.Unlock()
	return v, nil
}
