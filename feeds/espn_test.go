package feeds

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-scoreboard/poll"
)

const espnSummaryJSON = `{
  "header": {
    "id": "401547417",
    "competitions": [{
      "id": "401547417",
      "date": "2023-10-14T19:30Z",
      "status": {
        "displayClock": "4:12",
        "period": 3,
        "type": {"state": "in", "completed": false, "detail": "4:12 - 3rd Quarter", "shortDetail": "4:12 - 3rd"}
      },
      "competitors": [
        {"id": "130", "homeAway": "home", "score": "24", "team": {"id": "130", "displayName": "Michigan Wolverines", "abbreviation": "MICH", "conferenceId": "5"}},
        {"id": "356", "homeAway": "away", "score": "7", "team": {"id": "356", "displayName": "Indiana Hoosiers", "abbreviation": "IU", "conferenceId": "5"}}
      ]
    }]
  },
  "gameInfo": {"venue": {"fullName": "Michigan Stadium", "address": {"city": "Ann Arbor", "state": "MI"}}},
  "scoringPlays": [
    {"id": "1001", "text": "Touchdown MICH", "homeScore": 7, "awayScore": 0, "period": {"number": 1}, "clock": {"displayValue": "10:01"}, "team": {"abbreviation": "MICH"}},
    {"id": "1002", "text": "Touchdown IU", "homeScore": 7, "awayScore": 7, "period": {"number": 2}, "clock": {"displayValue": "3:30"}, "team": {"abbreviation": "IU"}},
    {"id": "1003", "text": "Field goal MICH", "homeScore": 24, "awayScore": 7, "period": {"number": 3}, "clock": {"displayValue": "5:00"}, "team": {"abbreviation": "MICH"}}
  ]
}`

func TestESPN_Decode(t *testing.T) {
	f := NewESPN("football", "college-football", "")
	ev, err := f.Decode(context.Background(), []byte(espnSummaryJSON), nil)
	require.NoError(t, err)

	assert.Equal(t, "401547417", ev.ID)
	assert.Equal(t, "college-football", ev.Sport)
	assert.Equal(t, StateIn, ev.State)
	assert.Equal(t, "4:12 - 3rd", ev.Detail)
	assert.Equal(t, 3, ev.Period)
	assert.Equal(t, "Indiana Hoosiers at Michigan Wolverines", ev.Name)
	assert.True(t, time.Date(2023, 10, 14, 19, 30, 0, 0, time.UTC).Equal(ev.Start))
	assert.Equal(t, Venue{Name: "Michigan Stadium", City: "Ann Arbor, MI"}, ev.Venue)

	home, ok := ev.Home()
	require.True(t, ok)
	assert.Equal(t, 24, home.Score)
	assert.Equal(t, "5", home.ConferenceID)
	assert.Equal(t, "IU 7 - 24 MICH", ev.ScoreLine())
	assert.Equal(t, "MICH", ev.Leader())

	require.Len(t, ev.Plays, 3)
	assert.Equal(t, "1003", ev.Plays[0].ID)
	assert.Equal(t, "1001", ev.Plays[2].ID)
	assert.True(t, ev.Plays[0].Scoring)
	assert.False(t, IsFinal(ev))
}

func TestESPN_DecodeIncomplete(t *testing.T) {
	f := NewESPN("football", "college-football", "")

	_, err := f.Decode(context.Background(), []byte(`{"header":{"id":"1"}}`), nil)
	assert.ErrorIs(t, err, poll.ErrIncomplete)

	_, err = f.Decode(context.Background(), []byte(`{"header":`), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, poll.ErrIncomplete)
}

func TestESPN_URL(t *testing.T) {
	f := NewESPN("football", "nfl", "http://localhost:9/")
	assert.Equal(t, "http://localhost:9/football/nfl/summary?event=42", f.URL("42"))
	assert.Equal(t, "http://localhost:9/football/nfl/scoreboard", f.ScoreboardURL())
	assert.Equal(t, "nfl", f.Sport())
}

const espnScoreboardJSON = `{
  "events": [
    {
      "id": "401547417",
      "name": "Indiana Hoosiers at Michigan Wolverines",
      "date": "2023-10-14T19:30Z",
      "competitions": [{
        "id": "401547417",
        "date": "2023-10-14T19:30Z",
        "status": {"period": 0, "type": {"state": "pre", "completed": false}},
        "competitors": [
          {"homeAway": "away", "score": "0", "team": {"id": "356", "displayName": "Indiana Hoosiers", "abbreviation": "IU", "conferenceId": "5"}},
          {"homeAway": "home", "score": "0", "team": {"id": "130", "displayName": "Michigan Wolverines", "abbreviation": "MICH", "conferenceId": "5"}}
        ]
      }]
    },
    {
      "id": "401547500",
      "name": "Texas Longhorns at Oklahoma Sooners",
      "date": "2023-10-14T16:00Z",
      "competitions": [{
        "id": "401547500",
        "status": {"type": {"state": "post", "completed": true}},
        "competitors": [
          {"homeAway": "home", "score": "34", "team": {"id": "201", "displayName": "Oklahoma Sooners", "abbreviation": "OU", "conferenceId": "4"}},
          {"homeAway": "away", "score": "30", "team": {"id": "251", "displayName": "Texas Longhorns", "abbreviation": "TEX", "conferenceId": "4"}}
        ]
      }]
    },
    {"id": "broken", "competitions": []}
  ]
}`

func TestESPN_ParseScoreboard(t *testing.T) {
	f := NewESPN("football", "college-football", "")
	games, err := f.ParseScoreboard([]byte(espnScoreboardJSON))
	require.NoError(t, err)
	require.Len(t, games, 2)

	g := games[0]
	assert.Equal(t, "401547417", g.ID)
	assert.Equal(t, "MICH", g.Home.Abbreviation)
	assert.Equal(t, "IU", g.Away.Abbreviation)
	assert.Equal(t, StatePre, g.State)

	// Missing competition date falls back to the event date.
	assert.True(t, time.Date(2023, 10, 14, 16, 0, 0, 0, time.UTC).Equal(games[1].Start))
	assert.Equal(t, StatePost, games[1].State)
}

func TestGame_Involves(t *testing.T) {
	g := Game{
		Home: Competitor{ID: "130", Abbreviation: "MICH", ConferenceID: "5"},
		Away: Competitor{ID: "356", Abbreviation: "IU", ConferenceID: "5"},
	}

	tests := []struct {
		name        string
		teams       []string
		conferences []string
		want        bool
	}{
		{"no filters", nil, nil, true},
		{"team id", []string{"356"}, nil, true},
		{"team abbreviation any case", []string{"mich"}, nil, true},
		{"conference", nil, []string{"5"}, true},
		{"other conference", nil, []string{"4"}, false},
		{"other team", []string{"OU"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Involves(tt.teams, tt.conferences))
		})
	}
}
