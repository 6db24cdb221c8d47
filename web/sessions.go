package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/poll"
	"live-scoreboard/view"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// Session is one in-process poll session rendered to an HTML scoreboard.
type Session struct {
	ID       string
	Sport    string
	Resource string
	Interval time.Duration
	Started  time.Time
	Board    *view.Scoreboard

	poll *poll.Session[feeds.Event]
}

// SessionInfo is the JSON listing of a session.
type SessionInfo struct {
	ID       string      `json:"id"`
	Sport    string      `json:"sport"`
	Resource string      `json:"resource"`
	Interval string      `json:"interval"`
	Started  time.Time   `json:"started"`
	State    poll.State  `json:"state"`
	Score    string      `json:"score,omitempty"`
	Detail   string      `json:"detail,omitempty"`
	Status   poll.Status `json:"status"`
	Error    string      `json:"error,omitempty"`
	Stats    poll.Stats  `json:"stats"`
}

func (s *Session) Info() SessionInfo {
	info := SessionInfo{
		ID:       s.ID,
		Sport:    s.Sport,
		Resource: s.Resource,
		Interval: s.Interval.String(),
		Started:  s.Started,
		State:    s.poll.State(),
		Status:   s.poll.Status(),
		Stats:    s.poll.Stats(),
	}
	if ev, ok := s.poll.Snapshot(); ok {
		info.Score = ev.ScoreLine()
		info.Detail = ev.Detail
	}
	if info.Status.LastErr != nil {
		info.Error = info.Status.LastErr.Error()
	}
	return info
}

func (s *Session) Refresh() { s.poll.Refresh() }

// StartRequest describes a session to start.
type StartRequest struct {
	ID       string
	Sport    string
	Resource string
	Interval time.Duration
	Timeout  time.Duration
}

// SessionsConfig configures a Sessions manager.
type SessionsConfig struct {
	Client *fetch.Client
	// BaseURLs overrides the public API of a sport, keyed by sport.
	BaseURLs map[string]string
	// Views returns additional views for a new session, such as history or
	// notifications.
	Views           func(sport, resource string) []poll.View[feeds.Event]
	DefaultInterval time.Duration
	DefaultTimeout  time.Duration
	Logger          *slog.Logger
}

// Sessions owns the in-process poll sessions of the web server. Sessions
// outlive the request that started them and end with Close.
type Sessions struct {
	cfg    SessionsConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	byID map[string]*Session
}

func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Client == nil {
		cfg.Client = fetch.New(fetch.Config{Logger: cfg.Logger})
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sessions{cfg: cfg, ctx: ctx, cancel: cancel, byID: make(map[string]*Session)}
}

// Start launches a session. An empty ID is replaced by a random one.
func (m *Sessions) Start(req StartRequest) (*Session, error) {
	feed, err := feeds.New(req.Sport, m.cfg.BaseURLs[req.Sport])
	if err != nil {
		return nil, err
	}
	if req.Resource == "" {
		return nil, errors.New("resource is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Interval <= 0 {
		req.Interval = m.cfg.DefaultInterval
	}
	if req.Timeout <= 0 {
		req.Timeout = m.cfg.DefaultTimeout
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[req.ID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, req.ID)
	}

	board := view.NewScoreboard()
	views := []poll.View[feeds.Event]{board}
	if m.cfg.Views != nil {
		views = append(views, m.cfg.Views(req.Sport, req.Resource)...)
	}
	src := feeds.NewSource(feed, m.cfg.Client)
	pcfg := src.SessionConfig(req.Resource, req.Interval, views...)
	pcfg.Timeout = req.Timeout
	pcfg.Logger = m.cfg.Logger.With("session", req.ID, "sport", req.Sport)

	ps, err := poll.Start(m.ctx, pcfg)
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:       req.ID,
		Sport:    req.Sport,
		Resource: req.Resource,
		Interval: pcfg.Interval,
		Started:  time.Now(),
		Board:    board,
		poll:     ps,
	}
	if s.Interval <= 0 {
		s.Interval = 30 * time.Second
	}
	m.byID[s.ID] = s
	m.cfg.Logger.Info("web: session started", "session", s.ID, "sport", s.Sport, "resource", s.Resource)
	return s, nil
}

func (m *Sessions) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	return s, ok
}

// List returns every session, oldest first.
func (m *Sessions) List() []SessionInfo {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		list = append(list, s)
	}
	m.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Started.Equal(list[j].Started) {
			return list[i].ID < list[j].ID
		}
		return list[i].Started.Before(list[j].Started)
	})
	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, s.Info())
	}
	return out
}

// Stop stops and forgets a session.
func (m *Sessions) Stop(id string) error {
	m.mu.Lock()
	s, ok := m.byID[id]
	delete(m.byID, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.poll.Stop()
	m.cfg.Logger.Info("web: session stopped", "session", id)
	return nil
}

// Close stops every session and waits for their loops to exit.
func (m *Sessions) Close() {
	m.cancel()
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.byID {
		<-s.poll.Done()
	}
}
