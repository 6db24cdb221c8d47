package feeds

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

	"live-scoreboard/fetch"
	"live-scoreboard/poll"
)

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"college-football", "f1", "mlb", "nfl", "nhl"}, Sports())

	f, err := Lookup("nhl")
	require.NoError(t, err)
	assert.Equal(t, "nhl", f.Sport())

	_, err = Lookup("curling")
	assert.ErrorContains(t, err, "curling")
}

func TestSource_PollsUntilFinal(t *testing.T) {
	live := `{"gameState":"LIVE","id":1,"homeTeam":{"id":10,"abbrev":"TOR","score":1},"awayTeam":{"id":8,"abbrev":"MTL","score":0}}`
	final := `{"gameState":"OFF","id":1,"homeTeam":{"id":10,"abbrev":"TOR","score":2},"awayTeam":{"id":8,"abbrev":"MTL","score":0}}`

	var served atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gamecenter/1/play-by-play", r.URL.Path)
		if served.Add(1) < 2 {
			_, _ = w.Write([]byte(live))
			return
		}
		_, _ = w.Write([]byte(final))
	}))
	defer srv.Close()

	feed, err := New("nhl", srv.URL)
	require.NoError(t, err)
	src := NewSource(feed, fetch.New(fetch.Config{}))

	cfg := src.SessionConfig("1", 10*time.Millisecond)
	s, err := poll.Start(context.Background(), cfg)
	require.NoError(t, err)
	defer s.Stop()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not reach the final state")
	}
	require.NoError(t, s.Wait())
	ev, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "nhl", ev.Sport)
	assert.Equal(t, StatePost, ev.State)
	assert.Equal(t, int32(2), served.Load())
}

// etagServer serves body with a fixed ETag and answers 304 to a matching
// If-None-Match.
func etagServer(t *testing.T, body string) (*httptest.Server, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var full, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		full.Add(1)
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &full, &notModified
}

func startSource(t *testing.T, cfg poll.Config[Event]) (*poll.Session[Event], <-chan poll.Outcome) {
	t.Helper()
	outcomes := make(chan poll.Outcome, 16)
	cfg.Interval = time.Hour
	cfg.OnCycle = func(o poll.Outcome) { outcomes <- o }
	s, err := poll.Start(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, outcomes
}

func waitOutcome(t *testing.T, ch <-chan poll.Outcome) poll.Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle")
	}
	return -1
}

func TestSource_DecodeFailureRetriedAfterNotModified(t *testing.T) {
	srv, full, notModified := etagServer(t, nhlPlayByPlayJSON)
	feed, err := New("nhl", srv.URL)
	require.NoError(t, err)
	src := NewSource(feed, fetch.New(fetch.Config{}))

	var decodes atomic.Int32
	cfg := src.SessionConfig("2023020204", time.Hour)
	cfg.Decode = func(ctx context.Context, body []byte) (Event, error) {
		if decodes.Add(1) == 1 {
			return Event{}, fmt.Errorf("%w: clock missing", poll.ErrIncomplete)
		}
		return src.Decode(ctx, body)
	}
	s, outcomes := startSource(t, cfg)

	require.Equal(t, poll.OutcomeFailed, waitOutcome(t, outcomes))
	assert.True(t, s.Status().Stale)

	s.Refresh()
	require.Equal(t, poll.OutcomeChanged, waitOutcome(t, outcomes))
	ev, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, "MTL 1 - 2 TOR", ev.ScoreLine())
	assert.False(t, s.Status().Stale)

	assert.Equal(t, int32(1), full.Load())
	assert.Equal(t, int32(1), notModified.Load())
	assert.Equal(t, int32(2), decodes.Load())
}

func TestSource_SharedClientSecondSessionRenders(t *testing.T) {
	srv, full, notModified := etagServer(t, nhlPlayByPlayJSON)
	feed, err := New("nhl", srv.URL)
	require.NoError(t, err)
	src := NewSource(feed, fetch.New(fetch.Config{}))

	first, outcomes := startSource(t, src.SessionConfig("2023020204", time.Hour))
	require.Equal(t, poll.OutcomeChanged, waitOutcome(t, outcomes))
	first.Stop()

	// The client now holds validators for the URL; a fresh session must still
	// get a body to render.
	second, outcomes := startSource(t, src.SessionConfig("2023020204", time.Hour))
	require.Equal(t, poll.OutcomeChanged, waitOutcome(t, outcomes))
	_, ok := second.Snapshot()
	assert.True(t, ok)

	assert.Equal(t, int32(2), full.Load())
	assert.Equal(t, int32(1), notModified.Load())
}
