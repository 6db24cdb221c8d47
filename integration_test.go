package scoreboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/notify"
	"live-scoreboard/poll"
	"live-scoreboard/store"
	"live-scoreboard/view"
)

func nhlBody(state string, home int, plays ...int) string {
	list := ""
	for i, id := range plays {
		if i > 0 {
			list += ","
		}
		list += fmt.Sprintf(`{"eventId":%d,"typeDescKey":"goal","periodDescriptor":{"number":1},"timeInPeriod":"0%d:00","details":{"eventOwnerTeamId":10,"homeScore":%d,"awayScore":0}}`,
			id, i+1, len(plays)-i)
	}
	return fmt.Sprintf(`{"id":2023020204,"gameState":%q,"periodDescriptor":{"number":1,"periodType":"REG"},`+
		`"homeTeam":{"id":10,"abbrev":"TOR","score":%d},"awayTeam":{"id":8,"abbrev":"MTL","score":0},"plays":[%s]}`,
		state, home, list)
}

// Integration: a live feed served over HTTP drives the HTML scoreboard,
// notifications and history through one poll session.
func TestIntegration_LiveGame(t *testing.T) {
	bodies := []string{
		nhlBody("LIVE", 1, 150),
		nhlBody("LIVE", 2, 150, 180),
		nhlBody("OFF", 2, 150, 180),
	}
	var version atomic.Int32
	var notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gamecenter/2023020204/play-by-play", r.URL.Path)
		v := version.Load()
		etag := fmt.Sprintf(`"v%d"`, v)
		if r.Header.Get("If-None-Match") == etag {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte(bodies[v]))
	}))
	defer srv.Close()

	feed, err := feeds.New("nhl", srv.URL)
	require.NoError(t, err)
	src := feeds.NewSource(feed, fetch.New(fetch.Config{}))

	history, err := store.Open(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer history.Close()

	rec := &recordingSender{}
	board := view.NewScoreboard()
	announcer := notify.NewView([]notify.Type{notify.TypeScoreChange, notify.TypeFinal}, map[string]notify.Sender{"test": rec}, nil)

	cfg := src.SessionConfig("2023020204", time.Hour, board, announcer, store.HistoryView{History: history})
	outcomes := make(chan poll.Outcome, 8)
	cfg.OnCycle = func(o poll.Outcome) { outcomes <- o }
	s, err := poll.Start(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Stop()

	require.Equal(t, poll.OutcomeChanged, <-outcomes)
	assert.Equal(t, "MTL 0 - 1 TOR", board.Event().ScoreLine())
	_, err = board.ToggleRow("plays:150")
	require.NoError(t, err)

	s.Refresh()
	require.Equal(t, poll.OutcomeUnchanged, <-outcomes)
	assert.Equal(t, int32(1), notModified.Load())

	version.Store(1)
	s.Refresh()
	require.Equal(t, poll.OutcomeChanged, <-outcomes)
	assert.Equal(t, []string{"plays:150"}, board.State().OpenKeys())
	plays, _ := board.Document().Region(view.RegionPlays)
	assert.Equal(t, []string{"plays:180", "plays:150"}, plays.Keys())

	version.Store(2)
	s.Refresh()
	require.Equal(t, poll.OutcomeTerminal, <-outcomes)
	require.NoError(t, s.Wait())

	var types []notify.Type
	for _, n := range rec.got {
		types = append(types, n.Type)
	}
	assert.Equal(t, []notify.Type{notify.TypeScoreChange, notify.TypeFinal}, types)

	entries, err := history.List(context.Background(), "nhl", "2023020204", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, feeds.StatePost, entries[0].Event.State)
}
