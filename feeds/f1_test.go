package feeds

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-scoreboard/poll"
)

const f1ResultsJSON = `{"MRData": {"RaceTable": {"season": "2024", "round": "6", "Races": [{
  "season": "2024", "round": "6", "raceName": "Miami Grand Prix", "date": "2024-05-05", "time": "20:00:00Z",
  "Circuit": {"circuitId": "miami", "circuitName": "Miami International Autodrome", "Location": {"locality": "Miami", "country": "USA"}},
  "Results": [
    {"number": "4", "position": "1", "points": "25", "status": "Finished", "laps": "57",
     "Driver": {"driverId": "norris", "code": "NOR", "givenName": "Lando", "familyName": "Norris"},
     "Constructor": {"name": "McLaren"}, "Time": {"time": "1:30:49.876"}},
    {"number": "1", "position": "2", "points": "18", "status": "Finished", "laps": "57",
     "Driver": {"driverId": "max_verstappen", "code": "VER", "givenName": "Max", "familyName": "Verstappen"},
     "Constructor": {"name": "Red Bull"}, "Time": {"time": "+7.612"}},
    {"number": "2", "position": "20", "points": "0", "status": "Retired", "laps": "27",
     "Driver": {"driverId": "sargeant", "code": "SAR", "givenName": "Logan", "familyName": "Sargeant"},
     "Constructor": {"name": "Williams"}}
  ]
}]}}}`

const f1CircuitJSON = `{"MRData": {"CircuitTable": {"Circuits": [{
  "circuitId": "miami", "circuitName": "Miami International Autodrome",
  "Location": {"lat": "25.9581", "long": "-80.2389", "locality": "Miami", "country": "USA"}
}]}}}`

const f1ScheduleJSON = `{"MRData": {"RaceTable": {"season": "2024", "round": "7", "Races": [{
  "season": "2024", "round": "7", "raceName": "Emilia Romagna Grand Prix", "date": "2024-05-19", "time": "13:00:00Z",
  "Circuit": {"circuitId": "imola", "circuitName": "Autodromo Enzo e Dino Ferrari", "Location": {"locality": "Imola", "country": "Italy"}}
}]}}}`

type recordingGetter struct {
	docs  map[string]string
	calls []string
}

func (g *recordingGetter) get(_ context.Context, url string) ([]byte, error) {
	g.calls = append(g.calls, url)
	for suffix, doc := range g.docs {
		if strings.HasSuffix(url, suffix) {
			return []byte(doc), nil
		}
	}
	return nil, errors.New("not found: " + url)
}

func TestF1_DecodeResultsWithCircuitCache(t *testing.T) {
	f := NewF1("http://f1.test")
	g := &recordingGetter{docs: map[string]string{"/circuits/miami.json": f1CircuitJSON}}

	ev, err := f.Decode(context.Background(), []byte(f1ResultsJSON), g.get)
	require.NoError(t, err)

	assert.Equal(t, "2024-6", ev.ID)
	assert.Equal(t, "Miami Grand Prix", ev.Name)
	assert.Equal(t, StatePost, ev.State)
	assert.True(t, IsFinal(ev))
	require.Len(t, ev.Competitors, 3)
	assert.Equal(t, "Lando Norris", ev.Competitors[0].Name)
	assert.Equal(t, 25, ev.Competitors[0].Score)
	assert.Equal(t, "McLaren · 1:30:49.876", ev.Competitors[0].Detail)
	assert.Equal(t, "Williams · Retired", ev.Competitors[2].Detail)
	assert.Equal(t, "P1 Lando Norris", ev.ScoreLine())
	assert.InDelta(t, 25.9581, ev.Venue.Lat, 1e-6)
	assert.Equal(t, 2024, ev.Start.Year())

	_, err = f.Decode(context.Background(), []byte(f1ResultsJSON), g.get)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://f1.test/circuits/miami.json"}, g.calls)
}

func TestF1_DecodeFallsBackToSchedule(t *testing.T) {
	f := NewF1("http://f1.test")
	g := &recordingGetter{docs: map[string]string{
		"/2024/7.json":         f1ScheduleJSON,
		"/circuits/imola.json": `{"MRData": {"CircuitTable": {"Circuits": []}}}`,
	}}
	empty := `{"MRData": {"RaceTable": {"season": "2024", "round": "7", "Races": []}}}`

	ev, err := f.Decode(context.Background(), []byte(empty), g.get)
	require.NoError(t, err)
	assert.Equal(t, StatePre, ev.State)
	assert.Equal(t, "Emilia Romagna Grand Prix", ev.Name)
	assert.Equal(t, "Imola", ev.Venue.City)
	assert.Empty(t, ev.Competitors)
}

func TestF1_DerivedFetchFailure(t *testing.T) {
	f := NewF1("http://f1.test")
	g := &recordingGetter{}

	_, err := f.Decode(context.Background(), []byte(f1ResultsJSON), g.get)
	assert.ErrorContains(t, err, "f1 circuit miami")

	_, err = f.Decode(context.Background(), []byte(`{"MRData": {"RaceTable": {}}}`), g.get)
	assert.ErrorIs(t, err, poll.ErrIncomplete)
}

func TestF1_URL(t *testing.T) {
	assert.Equal(t, "https://api.jolpi.ca/ergast/f1/2024/6/results.json", NewF1("").URL("2024/6"))
}
