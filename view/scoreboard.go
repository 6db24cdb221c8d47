package view

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
)

const (
	RegionHeader    = "header"
	RegionTabs      = "tabs"
	RegionPlays     = "plays"
	RegionStandings = "standings"
	RegionStatus    = "status"

	TabPlays     = "plays"
	TabStandings = "standings"
)

// Tabs lists the selectable tabs in display order.
var Tabs = []string{TabPlays, TabStandings}

var (
	ErrUnknownRow    = errors.New("view: unknown row")
	ErrUnknownTab    = errors.New("view: unknown tab")
	ErrUnknownRegion = errors.New("view: unknown region")
)

var policy = bluemonday.UGCPolicy()

// Scoreboard is the HTML view of one event. It implements poll.View and
// poll.StatusView. User input arrives on HTTP goroutines while renders run
// on the session goroutine, so all state sits behind one mutex.
type Scoreboard struct {
	mu     sync.Mutex
	doc    *Document
	state  poll.InteractionState
	status poll.Status
	event  feeds.Event
	now    func() time.Time
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{
		doc:   NewDocument(RegionHeader, RegionTabs, RegionPlays, RegionStandings, RegionStatus),
		state: poll.InteractionState{ActiveTab: TabPlays},
		now:   time.Now,
	}
}

// Render rebuilds the header, plays and standings regions. Like replacing
// DOM nodes it drops open rows, the active tab and the scroll offset.
func (s *Scoreboard) Render(_ context.Context, ev feeds.Event) error {
	header := headerRows(ev, s.now())
	plays := playRows(ev)
	standings := standingRows(ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.event = ev
	s.doc.Replace(RegionHeader, header)
	s.doc.Replace(RegionPlays, plays)
	s.doc.Replace(RegionStandings, standings)
	s.state = poll.InteractionState{ActiveTab: TabPlays}
	return nil
}

func (s *Scoreboard) CaptureState() poll.InteractionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ReapplyState restores st by key. Keys of rows that no longer exist are
// kept so the row opens again if it comes back; the scroll offset is
// clamped to the active list.
func (s *Scoreboard) ReapplyState(st poll.InteractionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := st.Clone()
	if !validTab(next.ActiveTab) {
		next.ActiveTab = TabPlays
	}
	next.ScrollOffset = s.clampScroll(next.ActiveTab, next.ScrollOffset)
	s.state = next
}

func (s *Scoreboard) ShowStatus(st poll.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.doc.Replace(RegionStatus, []Row{{
		Key:     "status:line",
		Summary: statusLine(st, s.now()),
		Class:   statusClass(st),
	}})
}

// ToggleRow expands or collapses the row with key and returns its new state.
func (s *Scoreboard) ToggleRow(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasRow(key) {
		return false, fmt.Errorf("%w: %s", ErrUnknownRow, key)
	}
	s.state.Selected = key
	return s.state.Toggle(key), nil
}

func (s *Scoreboard) SelectTab(tab string) error {
	if !validTab(tab) {
		return fmt.Errorf("%w: %s", ErrUnknownTab, tab)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.ActiveTab != tab {
		s.state.ActiveTab = tab
		s.state.ScrollOffset = 0
	}
	return nil
}

// ScrollTo sets the offset of the active list and returns the clamped value.
func (s *Scoreboard) ScrollTo(offset int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ScrollOffset = s.clampScroll(s.state.ActiveTab, offset)
	return s.state.ScrollOffset
}

// State returns a copy of the current interaction state.
func (s *Scoreboard) State() poll.InteractionState {
	return s.CaptureState()
}

// Event returns the last rendered event.
func (s *Scoreboard) Event() feeds.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event
}

// Document exposes the underlying regions.
func (s *Scoreboard) Document() *Document { return s.doc }

func (s *Scoreboard) hasRow(key string) bool {
	for _, name := range []string{RegionPlays, RegionStandings} {
		if r, ok := s.doc.Region(name); ok && r.Has(key) {
			return true
		}
	}
	return false
}

func (s *Scoreboard) clampScroll(tab string, offset int) int {
	r, _ := s.doc.Region(tab)
	if offset >= len(r.Rows) {
		offset = len(r.Rows) - 1
	}
	if offset < 0 {
		offset = 0
	}
	return offset
}

func validTab(tab string) bool {
	for _, t := range Tabs {
		if t == tab {
			return true
		}
	}
	return false
}

func headerRows(ev feeds.Event, now time.Time) []Row {
	detail := ev.Detail
	if ev.State == feeds.StatePre && !ev.Start.IsZero() {
		detail = "Starts " + humanize.RelTime(ev.Start, now, "ago", "from now")
	}
	parts := []string{template.HTMLEscapeString(ev.Name)}
	if detail != "" {
		parts = append(parts, template.HTMLEscapeString(detail))
	}
	if ev.Venue.Name != "" {
		parts = append(parts, template.HTMLEscapeString(strings.TrimSuffix(ev.Venue.Name+", "+ev.Venue.City, ", ")))
	}
	return []Row{{
		Key:     "header:" + ev.ID,
		Summary: ev.ScoreLine(),
		Detail:  strings.Join(parts, "<br>"),
		Class:   "state-" + string(ev.State),
	}}
}

func playRows(ev feeds.Event) []Row {
	rows := make([]Row, 0, len(ev.Plays))
	for _, p := range ev.Plays {
		class := "play"
		if p.Scoring {
			class = "play scoring"
		}
		summary := strings.TrimSpace(fmt.Sprintf("%s %s %s", PeriodLabel(ev.Sport, p.Period, p.Clock), p.Clock, p.Team))
		if p.Scoring {
			summary += fmt.Sprintf(" (%d-%d)", p.AwayScore, p.HomeScore)
		}
		rows = append(rows, Row{
			Key:     RegionPlays + ":" + p.ID,
			Summary: summary,
			Detail:  policy.Sanitize(p.Text),
			Class:   class,
		})
	}
	return rows
}

func standingRows(ev feeds.Event) []Row {
	rows := make([]Row, 0, len(ev.Competitors))
	for _, c := range ev.Competitors {
		var summary string
		if c.Position > 0 {
			summary = fmt.Sprintf("P%d %s", c.Position, c.Name)
		} else {
			summary = fmt.Sprintf("%s %d", c.Abbreviation, c.Score)
		}
		detail := c.Name
		if c.Detail != "" {
			detail = c.Detail
		}
		rows = append(rows, Row{
			Key:     RegionStandings + ":" + c.ID,
			Summary: summary,
			Detail:  policy.Sanitize(detail),
			Class:   "competitor " + c.HomeAway,
		})
	}
	return rows
}

// PeriodLabel names a period the way each sport does.
func PeriodLabel(sport string, period int, half string) string {
	if period <= 0 {
		return ""
	}
	switch sport {
	case "mlb":
		if strings.EqualFold(half, "bottom") {
			return fmt.Sprintf("Bot %d", period)
		}
		return fmt.Sprintf("Top %d", period)
	case "nhl":
		if period > 3 {
			return "OT"
		}
		return fmt.Sprintf("P%d", period)
	case "f1":
		return fmt.Sprintf("Lap %d", period)
	}
	if period > 4 {
		return "OT"
	}
	return fmt.Sprintf("Q%d", period)
}

func statusLine(st poll.Status, now time.Time) string {
	switch {
	case st.Stopped && st.LastErr != nil:
		return "Polling stopped: " + st.LastErr.Error()
	case st.Failed:
		msg := fmt.Sprintf("Update failed %d times in a row", st.Failures)
		if st.LastErr != nil {
			msg += ": " + st.LastErr.Error()
		}
		return msg
	case st.Stale:
		if st.LastSuccess.IsZero() {
			return "Waiting for first update (retrying)"
		}
		return "Showing data from " + humanize.RelTime(st.LastSuccess, now, "ago", "from now") + " (retrying)"
	case !st.LastSuccess.IsZero():
		return "Updated " + humanize.RelTime(st.LastSuccess, now, "ago", "from now")
	}
	return ""
}

func statusClass(st poll.Status) string {
	switch {
	case st.Failed:
		return "status failed"
	case st.Stale:
		return "status stale"
	}
	return "status ok"
}

// WriteHTML writes the full page.
func (s *Scoreboard) WriteHTML(w io.Writer) error {
	return pageTemplate.Execute(w, s.pageData())
}

// WriteRegion writes one region as an HTML fragment.
func (s *Scoreboard) WriteRegion(w io.Writer, name string) error {
	data := s.pageData()
	for _, r := range data.Regions {
		if r.Name == name {
			return pageTemplate.ExecuteTemplate(w, "region", r)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownRegion, name)
}
