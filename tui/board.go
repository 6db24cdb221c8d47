// Package tui is a terminal scoreboard built on tview. Board implements
// poll.View and poll.StatusView; widget access is funnelled through the
// tview event loop so renders from the session goroutine never race with
// key handling.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
	"live-scoreboard/view"
)

// ErrClosed is returned by Render once the board was closed.
var ErrClosed = errors.New("tui: board closed")

// Board shows one event: a header, a tab strip, the plays tree, the
// standings table and a status line.
type Board struct {
	app *tview.Application

	header    *tview.TextView
	tabs      *tview.TextView
	pages     *tview.Pages
	plays     *tview.TreeView
	standings *tview.Table
	status    *tview.TextView
	root      *tview.Flex

	// OnRefresh is called when the user presses 'r'.
	OnRefresh func()

	closeOnce sync.Once
	closed    chan struct{}
	now       func() time.Time

	// Keys of standings rows shown with their detail column.
	openStandings map[string]bool
}

// NewBoard builds the widgets. With a nil app every update runs inline,
// which is how tests drive the board.
func NewBoard(app *tview.Application) *Board {
	b := &Board{
		app:           app,
		header:        tview.NewTextView().SetDynamicColors(true),
		tabs:          tview.NewTextView().SetDynamicColors(true),
		pages:         tview.NewPages(),
		plays:         tview.NewTreeView(),
		standings:     tview.NewTable().SetSelectable(true, false),
		status:        tview.NewTextView().SetDynamicColors(true),
		closed:        make(chan struct{}),
		now:           time.Now,
		openStandings: make(map[string]bool),
	}
	b.header.SetBorder(true)
	b.plays.SetRoot(tview.NewTreeNode("plays").SetSelectable(false)).SetTopLevel(1)
	b.plays.SetSelectedFunc(func(node *tview.TreeNode) {
		node.SetExpanded(!node.IsExpanded())
	})
	b.standings.SetSelectedFunc(func(row, _ int) {
		if key, ok := b.standingsKey(row); ok {
			b.openStandings[key] = !b.openStandings[key]
			b.fillStandingsDetail()
		}
	})

	b.pages.AddPage(view.TabPlays, b.plays, true, true)
	b.pages.AddPage(view.TabStandings, b.standings, true, false)
	b.drawTabs(view.TabPlays)

	b.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(b.header, 4, 0, false).
		AddItem(b.tabs, 1, 0, false).
		AddItem(b.pages, 0, 1, true).
		AddItem(b.status, 1, 0, false)
	return b
}

// Root is the primitive to hand to Application.SetRoot.
func (b *Board) Root() tview.Primitive { return b.root }

// Close releases callers blocked on the UI loop. Call it after the
// application stopped.
func (b *Board) Close() {
	b.closeOnce.Do(func() { close(b.closed) })
}

// dispatch runs fn on the UI goroutine and waits for it.
func (b *Board) dispatch(ctx context.Context, fn func()) error {
	if b.app == nil {
		fn()
		return nil
	}
	done := make(chan struct{})
	go b.app.QueueUpdateDraw(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.closed:
		return ErrClosed
	}
}

// Render rebuilds every widget from ev. Expansion, selection, the front
// page and offsets are reset the way a fresh widget tree would be.
func (b *Board) Render(ctx context.Context, ev feeds.Event) error {
	return b.dispatch(ctx, func() {
		b.header.SetText(headerText(ev))

		root := b.plays.GetRoot()
		root.ClearChildren()
		for _, p := range ev.Plays {
			key := view.RegionPlays + ":" + p.ID
			label := strings.TrimSpace(fmt.Sprintf("%s %s %s", view.PeriodLabel(ev.Sport, p.Period, p.Clock), p.Clock, p.Team))
			node := tview.NewTreeNode(label).SetReference(key).SetExpanded(false)
			if p.Scoring {
				node.SetColor(tcell.ColorYellow)
			}
			node.AddChild(tview.NewTreeNode(tview.Escape(p.Text)).SetSelectable(false))
			root.AddChild(node)
		}
		b.plays.SetCurrentNode(nil)

		b.standings.Clear()
		for i, c := range ev.Competitors {
			key := view.RegionStandings + ":" + c.ID
			label := fmt.Sprintf("%s %d", c.Abbreviation, c.Score)
			if c.Position > 0 {
				label = fmt.Sprintf("P%-2d %s", c.Position, c.Name)
			}
			b.standings.SetCell(i, 0, tview.NewTableCell(tview.Escape(label)).SetReference(key))
			b.standings.SetCell(i, 1, tview.NewTableCell("").SetReference(tview.Escape(c.Detail)))
		}
		b.standings.SetOffset(0, 0)
		b.standings.Select(0, 0)
		b.openStandings = make(map[string]bool)

		b.pages.SwitchToPage(view.TabPlays)
		b.drawTabs(view.TabPlays)
	})
}

func (b *Board) CaptureState() poll.InteractionState {
	var st poll.InteractionState
	_ = b.dispatch(context.Background(), func() {
		for _, node := range b.plays.GetRoot().GetChildren() {
			if key, ok := node.GetReference().(string); ok && node.IsExpanded() {
				st.SetOpen(key, true)
			}
		}
		for key, open := range b.openStandings {
			if open {
				st.SetOpen(key, true)
			}
		}
		st.ActiveTab, _ = b.pages.GetFrontPage()
		switch st.ActiveTab {
		case view.TabStandings:
			st.ScrollOffset, _ = b.standings.GetOffset()
			if row, _ := b.standings.GetSelection(); row >= 0 {
				st.Selected, _ = b.standingsKey(row)
			}
		default:
			st.ScrollOffset = b.plays.GetScrollOffset()
			if node := b.plays.GetCurrentNode(); node != nil {
				st.Selected, _ = node.GetReference().(string)
			}
		}
	})
	return st
}

func (b *Board) ReapplyState(st poll.InteractionState) {
	_ = b.dispatch(context.Background(), func() {
		for _, node := range b.plays.GetRoot().GetChildren() {
			key, _ := node.GetReference().(string)
			node.SetExpanded(st.IsOpen(key))
			if key != "" && key == st.Selected {
				b.plays.SetCurrentNode(node)
			}
		}
		for row := 0; row < b.standings.GetRowCount(); row++ {
			key, _ := b.standingsKey(row)
			if st.IsOpen(key) {
				b.openStandings[key] = true
			}
			if key != "" && key == st.Selected {
				b.standings.Select(row, 0)
			}
		}
		b.fillStandingsDetail()

		tab := st.ActiveTab
		if !b.pages.HasPage(tab) {
			tab = view.TabPlays
		}
		b.pages.SwitchToPage(tab)
		b.drawTabs(tab)
		if tab == view.TabStandings {
			b.standings.SetOffset(st.ScrollOffset, 0)
		}
	})
}

func (b *Board) ShowStatus(st poll.Status) {
	_ = b.dispatch(context.Background(), func() {
		b.status.SetText(statusText(st, b.now()))
	})
}

// HandleKey is the application input capture: Tab cycles pages, 'r'
// refreshes and 'q' quits. Everything else goes to the focused widget.
func (b *Board) HandleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab, tcell.KeyBacktab:
		b.cycleTab()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'r':
			if b.OnRefresh != nil {
				b.OnRefresh()
			}
			return nil
		case 'q':
			if b.app != nil {
				b.app.Stop()
			}
			return nil
		}
	}
	return event
}

func (b *Board) cycleTab() {
	front, _ := b.pages.GetFrontPage()
	next := view.Tabs[0]
	for i, t := range view.Tabs {
		if t == front {
			next = view.Tabs[(i+1)%len(view.Tabs)]
		}
	}
	b.pages.SwitchToPage(next)
	b.drawTabs(next)
	if b.app != nil {
		_, item := b.pages.GetFrontPage()
		b.app.SetFocus(item)
	}
}

func (b *Board) drawTabs(active string) {
	parts := make([]string, 0, len(view.Tabs))
	for _, t := range view.Tabs {
		if t == active {
			parts = append(parts, "[black:white] "+t+" [-:-]")
		} else {
			parts = append(parts, " "+t+" ")
		}
	}
	b.tabs.SetText(strings.Join(parts, " "))
}

func (b *Board) standingsKey(row int) (string, bool) {
	cell := b.standings.GetCell(row, 0)
	if cell == nil {
		return "", false
	}
	key, ok := cell.GetReference().(string)
	return key, ok && key != ""
}

// fillStandingsDetail shows the detail column of open standings rows.
func (b *Board) fillStandingsDetail() {
	for row := 0; row < b.standings.GetRowCount(); row++ {
		key, ok := b.standingsKey(row)
		cell := b.standings.GetCell(row, 1)
		if !ok || cell == nil {
			continue
		}
		detail, _ := cell.GetReference().(string)
		if b.openStandings[key] {
			cell.SetText(detail)
		} else {
			cell.SetText("")
		}
	}
}

func headerText(ev feeds.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[::b]%s[::-]\n", tview.Escape(ev.ScoreLine()))
	line := ev.Detail
	if ev.Venue.Name != "" {
		line += "  " + ev.Venue.Name
	}
	sb.WriteString(tview.Escape(strings.TrimSpace(line)))
	return sb.String()
}

func statusText(st poll.Status, now time.Time) string {
	switch {
	case st.Failed && st.LastErr != nil:
		return "[red]update failed: " + tview.Escape(st.LastErr.Error()) + "[-]"
	case st.Stale:
		return "[yellow]stale, last update " + humanize.RelTime(st.LastSuccess, now, "ago", "from now") + "[-]"
	case !st.LastSuccess.IsZero():
		return "updated " + humanize.RelTime(st.LastSuccess, now, "ago", "from now")
	}
	return ""
}
