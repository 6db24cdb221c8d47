package feeds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-scoreboard/poll"
)

const mlbLiveJSON = `{
  "gamePk": 717465,
  "gameData": {
    "datetime": {"dateTime": "2023-10-04T17:07:00Z"},
    "status": {"abstractGameState": "Live", "detailedState": "In Progress"},
    "teams": {
      "home": {"id": 119, "name": "Los Angeles Dodgers", "abbreviation": "LAD"},
      "away": {"id": 109, "name": "Arizona Diamondbacks", "abbreviation": "AZ"}
    },
    "venue": {"name": "Dodger Stadium", "location": {"city": "Los Angeles"}}
  },
  "liveData": {
    "linescore": {"currentInning": 2, "inningHalf": "Bottom", "teams": {"home": {"runs": 1}, "away": {"runs": 3}}},
    "plays": {"allPlays": [
      {"about": {"atBatIndex": 0, "inning": 1, "halfInning": "top", "isScoringPlay": true}, "result": {"event": "Home Run", "description": "Ketel Marte homers.", "homeScore": 0, "awayScore": 1}},
      {"about": {"atBatIndex": 1, "inning": 1, "halfInning": "bottom", "isScoringPlay": true}, "result": {"event": "Single", "description": "Freddie Freeman singles.", "homeScore": 1, "awayScore": 3}},
      {"about": {"atBatIndex": 2, "inning": 2, "halfInning": "bottom", "isScoringPlay": false}, "result": {}}
    ]}
  }
}`

func TestMLB_Decode(t *testing.T) {
	ev, err := NewMLB("").Decode(context.Background(), []byte(mlbLiveJSON), nil)
	require.NoError(t, err)

	assert.Equal(t, "717465", ev.ID)
	assert.Equal(t, StateIn, ev.State)
	assert.Equal(t, 2, ev.Period)
	assert.Equal(t, "AZ 3 - 1 LAD", ev.ScoreLine())
	assert.Equal(t, "Dodger Stadium", ev.Venue.Name)

	// The unfinished at-bat is skipped and the rest is newest first.
	require.Len(t, ev.Plays, 2)
	assert.Equal(t, "1", ev.Plays[0].ID)
	assert.Equal(t, "LAD", ev.Plays[0].Team)
	assert.Equal(t, "AZ", ev.Plays[1].Team)
}

func TestMLB_States(t *testing.T) {
	assert.Equal(t, StatePre, mlbState("Preview"))
	assert.Equal(t, StatePost, mlbState("Final"))
	assert.Equal(t, State(""), mlbState("Suspended?"))
}

func TestMLB_DecodeIncomplete(t *testing.T) {
	_, err := NewMLB("").Decode(context.Background(), []byte(`{"gamePk": 1, "gameData": {"status": {"abstractGameState": "Live"}}}`), nil)
	assert.ErrorIs(t, err, poll.ErrIncomplete)
}

func TestMLB_URL(t *testing.T) {
	assert.Equal(t, "https://statsapi.mlb.com/api/v1.1/game/717465/feed/live", NewMLB("").URL("717465"))
}
