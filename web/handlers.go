// Package web serves in-process scoreboards over HTTP and manages the
// durable scoreboard workflows through Temporal.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	scoreboard "live-scoreboard"
	"live-scoreboard/config"
	"live-scoreboard/feeds"
	"live-scoreboard/notify"
	"live-scoreboard/store"
	"live-scoreboard/view"
)

// Options wires the handlers. Temporal, History and Publisher may be nil.
type Options struct {
	Temporal  client.Client
	Sessions  *Sessions
	Config    config.Config
	History   *store.History
	Publisher *store.Publisher
	Logger    *slog.Logger
}

type Handlers struct {
	temporalClient client.Client
	sessions       *Sessions
	cfg            config.Config
	history        *store.History
	publisher      *store.Publisher
	log            *slog.Logger
	now            func() time.Time
}

func NewHandlers(opts Options) *Handlers {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sessions == nil {
		opts.Sessions = NewSessions(SessionsConfig{Logger: opts.Logger})
	}
	return &Handlers{
		temporalClient: opts.Temporal,
		sessions:       opts.Sessions,
		cfg:            opts.Config,
		history:        opts.History,
		publisher:      opts.Publisher,
		log:            opts.Logger,
		now:            time.Now,
	}
}

// Routes returns the API router.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sports", h.GetSports)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.ListSessions)
			r.Post("/", h.StartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.SessionPage)
				r.Delete("/", h.StopSession)
				r.Get("/regions/{region}", h.SessionRegion)
				r.Post("/rows/{key}/toggle", h.ToggleRow)
				r.Post("/tab/{tab}", h.SelectTab)
				r.Post("/scroll", h.Scroll)
				r.Post("/refresh", h.Refresh)
				r.Get("/history", h.SessionHistory)
			})
		})

		r.Get("/live/{sport}/{resource}", h.LastKnownGood)

		r.Post("/track", h.StartTracking)
		r.Post("/scoreboards", h.StartScoreboard)
		r.Get("/workflows", h.GetWorkflows)
		r.Delete("/workflows/{id}", h.CancelWorkflow)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Sport is one supported feed.
type Sport struct {
	ID        string `json:"id"`
	Discovery bool   `json:"discovery"`
}

// GetSports lists the supported feeds and whether games can be discovered
// from a league scoreboard.
func (h *Handlers) GetSports(w http.ResponseWriter, r *http.Request) {
	var sports []Sport
	for _, id := range feeds.Sports() {
		f, _ := feeds.Lookup(id)
		_, espn := f.(*feeds.ESPN)
		sports = append(sports, Sport{ID: id, Discovery: espn})
	}
	writeJSON(w, http.StatusOK, sports)
}

type startSessionRequest struct {
	Sport    string `json:"sport"`
	Resource string `json:"resource"`
	Interval string `json:"interval"`
}

func parseInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}

func (h *Handlers) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	interval, err := parseInterval(req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s, err := h.sessions.Start(StartRequest{Sport: req.Sport, Resource: req.Resource, Interval: interval})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s.Info())
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrSessionNotFound.Error())
	}
	return s, ok
}

// SessionPage renders the full scoreboard page.
func (h *Handlers) SessionPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Board.WriteHTML(w); err != nil {
		h.log.Error("web: render page", "session", s.ID, "error", err)
	}
}

// SessionRegion renders one region as an HTML fragment.
func (h *Handlers) SessionRegion(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "region")
	if _, ok := s.Board.Document().Region(name); !ok {
		writeError(w, http.StatusNotFound, view.ErrUnknownRegion.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.Board.WriteRegion(w, name); err != nil {
		h.log.Error("web: render region", "session", s.ID, "region", name, "error", err)
	}
}

func (h *Handlers) ToggleRow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid row key")
		return
	}
	open, err := s.Board.ToggleRow(key)
	if errors.Is(err, view.ErrUnknownRow) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "open": open})
}

func (h *Handlers) SelectTab(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Board.SelectTab(chi.URLParam(r, "tab")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Board.State())
}

func (h *Handlers) Scroll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Offset int `json:"offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"offset": s.Board.ScrollTo(req.Offset)})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Refresh requested"})
}

func (h *Handlers) StopSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Stop(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionHistory lists the recorded snapshots of a session's event.
func (h *Handlers) SessionHistory(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "history is not configured")
		return
	}
	ev, ok := s.poll.Snapshot()
	if !ok {
		writeJSON(w, http.StatusOK, []store.Entry{})
		return
	}
	entries, err := h.history.List(r.Context(), ev.Sport, ev.ID, 0)
	if err != nil {
		h.log.Error("web: list history", "session", s.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// LastKnownGood returns the snapshot another process published for an
// event.
func (h *Handlers) LastKnownGood(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		writeError(w, http.StatusNotImplemented, "redis is not configured")
		return
	}
	ev, ok, err := h.publisher.LastKnownGood(r.Context(), chi.URLParam(r, "sport"), chi.URLParam(r, "resource"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot")
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type trackRequest struct {
	Sport       string   `json:"sport"`
	Teams       []string `json:"teams"`
	Conferences []string `json:"conferences"`
	Interval    string   `json:"interval"`
}

func (h *Handlers) notificationTypes() []notify.Type {
	return notify.ParseTypes(strings.Join(h.cfg.NotificationTypes, ","))
}

func (h *Handlers) taskQueue() string {
	if h.cfg.TaskQueue != "" {
		return h.cfg.TaskQueue
	}
	return scoreboard.TaskQueueName
}

func (h *Handlers) demo(w http.ResponseWriter, message string) {
	now := h.now()
	writeJSON(w, http.StatusOK, map[string]string{
		"workflowId": "demo-workflow-" + now.Format("20060102-150405"),
		"runId":      "demo-run-" + now.Format("150405"),
		"message":    "Demo mode: " + message + " (Temporal server not connected)",
	})
}

// StartTracking starts a CollectGamesWorkflow for the selected teams and
// conferences.
func (h *Handlers) StartTracking(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	f, err := feeds.Lookup(req.Sport)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := f.(*feeds.ESPN); !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("game discovery is not available for %s", req.Sport))
		return
	}
	interval, err := parseInterval(req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.temporalClient == nil {
		h.demo(w, "Tracking request received")
		return
	}

	options := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("collect-%s-%s", req.Sport, h.now().Format("20060102-150405")),
		TaskQueue: h.taskQueue(),
	}
	we, err := h.temporalClient.ExecuteWorkflow(r.Context(), options, scoreboard.CollectGamesWorkflow, scoreboard.TrackingRequest{
		Sport:                req.Sport,
		Teams:                req.Teams,
		Conferences:          req.Conferences,
		Interval:             interval,
		NotificationTypes:    h.notificationTypes(),
		NotificationChannels: h.cfg.NotificationChannels,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start workflow: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"workflowId": we.GetID(),
		"runId":      we.GetRunID(),
		"message":    "Tracking started successfully",
	})
}

// StartScoreboard starts one ScoreboardWorkflow.
func (h *Handlers) StartScoreboard(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := feeds.Lookup(req.Sport); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Resource == "" {
		writeError(w, http.StatusBadRequest, "resource is required")
		return
	}
	interval, err := parseInterval(req.Interval)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.temporalClient == nil {
		h.demo(w, "Scoreboard request received")
		return
	}

	sreq := scoreboard.ScoreboardRequest{
		Sport:                req.Sport,
		Resource:             req.Resource,
		Interval:             interval,
		Timeout:              h.cfg.FetchTimeout,
		NotificationTypes:    h.notificationTypes(),
		NotificationChannels: h.cfg.NotificationChannels,
	}
	options := client.StartWorkflowOptions{
		ID:        sreq.WorkflowID(),
		TaskQueue: h.taskQueue(),
	}
	we, err := h.temporalClient.ExecuteWorkflow(r.Context(), options, scoreboard.ScoreboardWorkflow, sreq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to start workflow: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"workflowId": we.GetID(),
		"runId":      we.GetRunID(),
		"message":    "Scoreboard started successfully",
	})
}

// ScoreboardWorkflowInfo is one running scoreboard workflow.
type ScoreboardWorkflowInfo struct {
	WorkflowID  string    `json:"workflowId"`
	RunID       string    `json:"runId"`
	WorkflowURL string    `json:"workflowUrl,omitempty"`
	Status      string    `json:"status"`
	Sport       string    `json:"sport,omitempty"`
	Resource    string    `json:"resource,omitempty"`
	Name        string    `json:"name,omitempty"`
	Score       string    `json:"score,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Stale       bool      `json:"stale"`
	Polls       int       `json:"polls"`
	StartTime   time.Time `json:"startTime"`
}

func (h *Handlers) workflowURL(id, runID string) string {
	path := fmt.Sprintf("/namespaces/%s/workflows/%s/%s", h.cfg.TemporalNamespace, id, runID)
	if h.cfg.TemporalHost != "" && !h.cfg.IsLocalTemporal() {
		return "https://cloud.temporal.io" + path
	}
	return "http://localhost:8233" + path
}

// GetWorkflows lists running scoreboard workflows with their latest
// snapshot.
func (h *Handlers) GetWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows := []ScoreboardWorkflowInfo{}
	if h.temporalClient == nil {
		writeJSON(w, http.StatusOK, workflows)
		return
	}

	resp, err := h.temporalClient.ListWorkflow(r.Context(), &workflowservice.ListWorkflowExecutionsRequest{
		Query: "WorkflowId STARTS_WITH 'scoreboard-' AND ExecutionStatus = 'Running'",
	})
	if err != nil {
		h.log.Error("web: list workflows", "error", err)
		writeJSON(w, http.StatusOK, workflows)
		return
	}

	for _, execution := range resp.GetExecutions() {
		info := ScoreboardWorkflowInfo{
			WorkflowID: execution.GetExecution().GetWorkflowId(),
			RunID:      execution.GetExecution().GetRunId(),
			Status:     execution.GetStatus().String(),
		}
		info.WorkflowURL = h.workflowURL(info.WorkflowID, info.RunID)
		h.querySnapshot(r.Context(), &info)
		workflows = append(workflows, info)
	}

	sort.Slice(workflows, func(i, j int) bool {
		if workflows[i].StartTime.Equal(workflows[j].StartTime) {
			return workflows[i].WorkflowID < workflows[j].WorkflowID
		}
		return workflows[i].StartTime.Before(workflows[j].StartTime)
	})
	writeJSON(w, http.StatusOK, workflows)
}

func (h *Handlers) querySnapshot(ctx context.Context, info *ScoreboardWorkflowInfo) {
	val, err := h.temporalClient.QueryWorkflow(ctx, info.WorkflowID, info.RunID, scoreboard.SnapshotQuery)
	if err != nil {
		h.log.Warn("web: query workflow", "workflow", info.WorkflowID, "error", err)
		return
	}
	var snap scoreboard.ScoreboardInfo
	if err := val.Get(&snap); err != nil {
		h.log.Warn("web: decode query result", "workflow", info.WorkflowID, "error", err)
		return
	}
	info.Sport = snap.Sport
	info.Resource = snap.Resource
	info.Stale = snap.Stale
	info.Polls = snap.Polls
	if ev := snap.Event; ev != nil {
		info.Name = ev.Name
		info.Score = ev.ScoreLine()
		info.Detail = ev.Detail
		info.StartTime = ev.Start
	}
}

// CancelWorkflow cancels a scoreboard or collect workflow.
func (h *Handlers) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.temporalClient == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Demo mode: Workflow cancel request received (Temporal server not connected)",
		})
		return
	}
	if err := h.temporalClient.CancelWorkflow(r.Context(), id, ""); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to cancel workflow: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Workflow cancelled successfully"})
}
