package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
	"live-scoreboard/view"
)

func hockey(home int, playIDs ...string) feeds.Event {
	ev := feeds.Event{
		ID:     "2023020204",
		Sport:  "nhl",
		State:  feeds.StateIn,
		Detail: "P2 12:34",
		Venue:  feeds.Venue{Name: "Scotiabank Arena"},
		Competitors: []feeds.Competitor{
			{ID: "10", Name: "Toronto Maple Leafs", Abbreviation: "TOR", HomeAway: "home", Score: home, Detail: "28 shots"},
			{ID: "8", Name: "Montréal Canadiens", Abbreviation: "MTL", HomeAway: "away", Score: 1, Detail: "19 shots"},
		},
	}
	for _, id := range playIDs {
		ev.Plays = append(ev.Plays, feeds.Play{ID: id, Period: 2, Clock: "07:26", Team: "TOR", Text: "goal " + id, Scoring: true})
	}
	return ev
}

func node(t *testing.T, b *Board, key string) *tview.TreeNode {
	t.Helper()
	for _, n := range b.plays.GetRoot().GetChildren() {
		if n.GetReference() == key {
			return n
		}
	}
	t.Fatalf("no node %s", key)
	return nil
}

func TestBoard_RenderAndReapply(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.Render(context.Background(), hockey(2, "170", "150")))
	assert.Contains(t, b.header.GetText(true), "MTL 1 - 2 TOR")

	n := node(t, b, "plays:150")
	n.SetExpanded(true)
	b.plays.SetCurrentNode(n)

	st := b.CaptureState()
	assert.Equal(t, []string{"plays:150"}, st.OpenKeys())
	assert.Equal(t, view.TabPlays, st.ActiveTab)
	assert.Equal(t, "plays:150", st.Selected)

	require.NoError(t, b.Render(context.Background(), hockey(3, "190", "170", "150")))
	assert.False(t, node(t, b, "plays:150").IsExpanded())

	b.ReapplyState(st)
	assert.True(t, node(t, b, "plays:150").IsExpanded())
	assert.False(t, node(t, b, "plays:190").IsExpanded())
	assert.Equal(t, "plays:150", b.plays.GetCurrentNode().GetReference())
	assert.Len(t, b.plays.GetRoot().GetChildren(), 3)
}

func TestBoard_StandingsState(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.Render(context.Background(), hockey(2)))

	st := poll.InteractionState{ActiveTab: view.TabStandings, Selected: "standings:8"}
	st.SetOpen("standings:10", true)
	b.ReapplyState(st)

	front, _ := b.pages.GetFrontPage()
	assert.Equal(t, view.TabStandings, front)
	assert.Equal(t, "28 shots", b.standings.GetCell(0, 1).Text)
	assert.Equal(t, "", b.standings.GetCell(1, 1).Text)
	row, _ := b.standings.GetSelection()
	assert.Equal(t, 1, row)

	got := b.CaptureState()
	assert.Equal(t, []string{"standings:10"}, got.OpenKeys())
	assert.Equal(t, "standings:8", got.Selected)
	assert.Equal(t, view.TabStandings, got.ActiveTab)
}

func TestBoard_UnknownTabFallsBackToPlays(t *testing.T) {
	b := NewBoard(nil)
	require.NoError(t, b.Render(context.Background(), hockey(2, "1")))
	b.ReapplyState(poll.InteractionState{ActiveTab: "video"})

	front, _ := b.pages.GetFrontPage()
	assert.Equal(t, view.TabPlays, front)
}

func TestBoard_HandleKey(t *testing.T) {
	b := NewBoard(nil)
	refreshed := 0
	b.OnRefresh = func() { refreshed++ }

	assert.Nil(t, b.HandleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone)))
	front, _ := b.pages.GetFrontPage()
	assert.Equal(t, view.TabStandings, front)
	assert.Contains(t, b.tabs.GetText(false), "[black:white] standings")

	b.HandleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone))
	front, _ = b.pages.GetFrontPage()
	assert.Equal(t, view.TabPlays, front)

	assert.Nil(t, b.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)))
	assert.Equal(t, 1, refreshed)

	down := tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone)
	assert.Equal(t, down, b.HandleKey(down))
}

func TestBoard_ShowStatus(t *testing.T) {
	b := NewBoard(nil)
	now := time.Date(2023, 11, 10, 1, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.ShowStatus(poll.Status{Stale: true, LastSuccess: now.Add(-30 * time.Second)})
	assert.Equal(t, "stale, last update 30 seconds ago", b.status.GetText(true))

	b.ShowStatus(poll.Status{Failed: true, LastErr: errors.New("http 503")})
	assert.Equal(t, "update failed: http 503", b.status.GetText(true))
}

func TestBoard_DispatchAfterClose(t *testing.T) {
	b := NewBoard(tview.NewApplication())
	b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The application never runs, so the update can only be abandoned.
	err := b.Render(ctx, hockey(1))
	assert.ErrorIs(t, err, ErrClosed)
}
