// Package store keeps what sessions render: a SQL history of every distinct
// snapshot and a Redis copy of the last-known-good snapshot per event.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var schema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sport TEXT NOT NULL,
			event_id TEXT NOT NULL,
			state TEXT NOT NULL,
			score_line TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			payload TEXT NOT NULL,
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_event ON snapshots(sport, event_id, recorded_at DESC)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS snapshots (
			id SERIAL PRIMARY KEY,
			sport VARCHAR(100) NOT NULL,
			event_id VARCHAR(100) NOT NULL,
			state VARCHAR(20) NOT NULL,
			score_line VARCHAR(500) NOT NULL,
			fingerprint VARCHAR(16) NOT NULL,
			payload TEXT NOT NULL,
			recorded_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_event ON snapshots(sport, event_id, recorded_at DESC)`,
	},
}

// Entry is one stored snapshot.
type Entry struct {
	ID          int64       `json:"id"`
	Fingerprint string      `json:"fingerprint"`
	RecordedAt  time.Time   `json:"recorded_at"`
	Event       feeds.Event `json:"event"`
}

// History stores snapshots in SQLite or PostgreSQL.
type History struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
	now    func() time.Time
}

// Open connects to dsn with driver ("sqlite" or "postgres") and creates the
// schema.
func Open(ctx context.Context, driver, dsn string) (*History, error) {
	if _, ok := schema[driver]; !ok {
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
	if dsn == "" {
		return nil, errors.New("store: DSN is required")
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases whole and writes serialised.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", driver, err)
	}

	h := &History{db: db, driver: driver, log: slog.Default(), now: time.Now}
	if err := h.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return h, nil
}

func (h *History) initSchema(ctx context.Context) error {
	for _, stmt := range schema[h.driver] {
		if _, err := h.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (h *History) rebind(query string) string {
	if h.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record stores ev unless it is identical to the newest stored snapshot of
// the same event. A payload that returns to an earlier state is stored again.
// It reports whether a row was written.
func (h *History) Record(ctx context.Context, ev feeds.Event) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("store: marshal event: %w", err)
	}
	fp := poll.FingerprintOf(payload).String()

	res, err := h.db.ExecContext(ctx, h.rebind(`
		INSERT INTO snapshots (sport, event_id, state, score_line, fingerprint, payload, recorded_at)
		SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT)
		WHERE COALESCE((
			SELECT fingerprint FROM snapshots
			WHERE sport = ? AND event_id = ?
			ORDER BY recorded_at DESC, id DESC
			LIMIT 1
		), '') <> ?`),
		ev.Sport, ev.ID, string(ev.State), ev.ScoreLine(), fp, string(payload), h.now().UnixMilli(),
		ev.Sport, ev.ID, fp)
	if err != nil {
		return false, fmt.Errorf("store: insert snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

// Latest returns the newest snapshot of an event.
func (h *History) Latest(ctx context.Context, sport, eventID string) (Entry, bool, error) {
	entries, err := h.List(ctx, sport, eventID, 1)
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[0], true, nil
}

// List returns up to limit snapshots of an event, newest first.
func (h *History) List(ctx context.Context, sport, eventID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx, h.rebind(`
		SELECT id, fingerprint, payload, recorded_at
		FROM snapshots
		WHERE sport = ? AND event_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`), sport, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query snapshots: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			payload string
			millis  int64
		)
		if err := rows.Scan(&e.ID, &e.Fingerprint, &payload, &millis); err != nil {
			return nil, fmt.Errorf("store: scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Event); err != nil {
			return nil, fmt.Errorf("store: decode snapshot %d: %w", e.ID, err)
		}
		e.RecordedAt = time.UnixMilli(millis).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// HistoryView records every rendered snapshot.
type HistoryView struct {
	History *History
}

func (v HistoryView) Render(ctx context.Context, ev feeds.Event) error {
	written, err := v.History.Record(ctx, ev)
	if err != nil {
		return err
	}
	if written {
		v.History.log.Debug("store: snapshot recorded", "sport", ev.Sport, "event", ev.ID, "score", ev.ScoreLine())
	}
	return nil
}

func (v HistoryView) CaptureState() poll.InteractionState { return poll.InteractionState{} }

func (v HistoryView) ReapplyState(poll.InteractionState) {}
