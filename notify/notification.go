// Package notify turns successive Event snapshots into human notifications
// and delivers them to logger, Slack and Telegram channels.
package notify

import (
	"fmt"
	"slices"
	"strings"

	"live-scoreboard/feeds"
)

// Type names a kind of notification. Values match NOTIFICATION_TYPES.
type Type string

const (
	TypeScoreChange Type = "score_change"
	TypeLeadChange  Type = "lead_change"
	TypeOvertime    Type = "overtime"
	TypeFinal       Type = "final"
)

// DefaultTypes is used when no types are configured.
var DefaultTypes = []Type{TypeScoreChange}

type Notification struct {
	Type    Type   `json:"type"`
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (n Notification) String() string {
	return n.Title + "\n" + n.Message
}

// ParseTypes splits a comma separated list, falling back to DefaultTypes.
func ParseTypes(s string) []Type {
	var out []Type
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, Type(part))
		}
	}
	if len(out) == 0 {
		return append([]Type(nil), DefaultTypes...)
	}
	return out
}

// Tracker remembers what was last announced for one event. It is plain data
// so a workflow can carry it across continue-as-new.
type Tracker struct {
	Types    []Type         `json:"types"`
	Primed   bool           `json:"primed"`
	Scores   map[string]int `json:"scores"`
	Leader   string         `json:"leader"`
	Overtime int            `json:"overtime"`
	Final    bool           `json:"final"`
}

func NewTracker(types []Type) *Tracker {
	if len(types) == 0 {
		types = DefaultTypes
	}
	return &Tracker{Types: types, Scores: make(map[string]int)}
}

func (t *Tracker) wants(typ Type) bool {
	return slices.Contains(t.Types, typ)
}

// Observe compares ev with the previous observation and returns the
// notifications due. The first observation only primes the tracker.
func (t *Tracker) Observe(ev feeds.Event) []Notification {
	if t.Scores == nil {
		t.Scores = make(map[string]int)
	}
	scoreChanged := false
	for _, c := range ev.Competitors {
		if last, ok := t.Scores[c.ID]; !ok || last != c.Score {
			scoreChanged = true
		}
		t.Scores[c.ID] = c.Score
	}
	leader := ev.Leader()
	overtime := OvertimeNumber(ev)

	if !t.Primed {
		t.Primed = true
		t.Leader = leader
		t.Overtime = overtime
		t.Final = feeds.IsFinal(ev)
		return nil
	}

	var out []Notification
	if scoreChanged && t.wants(TypeScoreChange) {
		out = append(out, scoreUpdate(ev))
	}
	// A lead change means the team that was behind is now ahead; drawing
	// level is not one.
	if leader != "" && t.Leader != "" && leader != t.Leader && t.wants(TypeLeadChange) {
		out = append(out, leadChange(ev, leader))
	}
	if leader != "" {
		t.Leader = leader
	}
	if overtime > t.Overtime {
		if t.wants(TypeOvertime) {
			out = append(out, overtimeStarted(ev, overtime))
		}
		t.Overtime = overtime
	}
	if feeds.IsFinal(ev) && !t.Final {
		if t.wants(TypeFinal) {
			out = append(out, finalScore(ev))
		}
		t.Final = true
	}
	return out
}

// RegulationPeriods is the number of periods before overtime.
func RegulationPeriods(sport string) int {
	switch sport {
	case "mlb":
		return 9
	case "nhl":
		return 3
	case "f1":
		return 0
	}
	return 4
}

// OvertimeNumber is 1 in the first overtime period, 2 in the second, and 0
// during regulation.
func OvertimeNumber(ev feeds.Event) int {
	reg := RegulationPeriods(ev.Sport)
	if reg == 0 || ev.Period <= reg {
		return 0
	}
	return ev.Period - reg
}

func scoreLine(ev feeds.Event) string {
	home, _ := ev.Home()
	away, _ := ev.Away()
	return fmt.Sprintf("%s %d - %s %d", home.Abbreviation, home.Score, away.Abbreviation, away.Score)
}

func matchup(ev feeds.Event) string {
	home, _ := ev.Home()
	away, _ := ev.Away()
	return home.Name + " vs " + away.Name
}

// Score update looks like:
//
//	Score Update!
//	Michigan Wolverines vs Ohio State Buckeyes
//	Score: MICH 100 - OSU 0
//	Q3, 12:34 left
func scoreUpdate(ev feeds.Event) Notification {
	return Notification{
		Type:    TypeScoreChange,
		EventID: ev.ID,
		Title:   "Score Update!",
		Message: fmt.Sprintf("%s\nScore: %s\n%s", matchup(ev), scoreLine(ev), clockLine(ev)),
	}
}

func leadChange(ev feeds.Event, leader string) Notification {
	name := leader
	for _, c := range ev.Competitors {
		if c.Abbreviation == leader {
			name = c.Name
		}
	}
	return Notification{
		Type:    TypeLeadChange,
		EventID: ev.ID,
		Title:   "Lead Change!",
		Message: fmt.Sprintf("%s take the lead in the %s game! It's currently %s.\nScore: %s", name, matchup(ev), clockLine(ev), scoreLine(ev)),
	}
}

func overtimeStarted(ev feeds.Event, n int) Notification {
	label := OvertimeLabel(n)
	return Notification{
		Type:    TypeOvertime,
		EventID: ev.ID,
		Title:   label + "!",
		Message: fmt.Sprintf("The game between the %s is in %s!\nScore: %s", matchup(ev), label, scoreLine(ev)),
	}
}

func finalScore(ev feeds.Event) Notification {
	return Notification{
		Type:    TypeFinal,
		EventID: ev.ID,
		Title:   "Final!",
		Message: fmt.Sprintf("%s\nFinal score: %s", matchup(ev), scoreLine(ev)),
	}
}

// OvertimeLabel names the nth overtime.
func OvertimeLabel(n int) string {
	switch n {
	case 1:
		return "OT"
	case 2:
		return "Double OT"
	case 3:
		return "Triple OT"
	}
	return fmt.Sprintf("%dth OT", n)
}

// PeriodName spells out a period for messages.
func PeriodName(sport string, period int) string {
	switch sport {
	case "mlb":
		return fmt.Sprintf("Inning %d", period)
	case "nhl":
		switch period {
		case 1:
			return "1st Period"
		case 2:
			return "2nd Period"
		case 3:
			return "3rd Period"
		}
		return OvertimeLabel(period - 3)
	}
	if period > 4 {
		return OvertimeLabel(period - 4)
	}
	return fmt.Sprintf("Q%d", period)
}

func clockLine(ev feeds.Event) string {
	p := PeriodName(ev.Sport, ev.Period)
	if ev.Clock == "" || ev.Sport == "mlb" {
		return p
	}
	return fmt.Sprintf("%s, %s left", p, ev.Clock)
}
