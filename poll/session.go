// Package poll drives a repeating fetch, compare, render cycle for one remote
// resource.
//
// A Session fetches the resource on a fixed interval, fingerprints the raw
// body and, only when the fingerprint changed, decodes a new snapshot and
// re-renders every attached View while carrying each view's interaction
// state across the render. Cycles of one session never overlap; ticks that
// fire while a cycle is in flight are dropped.
//
//	s, err := poll.Start(ctx, poll.Config[feeds.Event]{
//		ResourceID: "745123",
//		Interval:   15 * time.Second,
//		Fetcher:    src,
//		Decode:     decode,
//		IsTerminal: feeds.IsFinal,
//		Views:      []poll.View[feeds.Event]{board},
//	})
//	defer s.Stop()
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Fetcher returns the raw body of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, resourceID string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, resourceID string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, resourceID string) ([]byte, error) {
	return f(ctx, resourceID)
}

// Invalidator is implemented by fetchers that keep conditional request
// validators. Invalidate makes the next Fetch for resourceID unconditional.
type Invalidator interface {
	Invalidate(resourceID string)
}

// DecodeFunc turns a raw body into a snapshot. It may perform further
// fetches through ctx; returning an error wrapping ErrIncomplete marks the
// body as structurally incomplete.
type DecodeFunc[S any] func(ctx context.Context, body []byte) (S, error)

// Outcome is the result of one cycle, reported to Config.OnCycle.
type Outcome int

const (
	OutcomeChanged Outcome = iota
	OutcomeUnchanged
	OutcomeFailed
	OutcomeDiscarded
	OutcomeTerminal
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeChanged:
		return "changed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeTerminal:
		return "terminal"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

// State is the lifecycle state of a session.
type State string

const (
	StateRunning  State = "running"
	StateTerminal State = "terminal"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Config configures a Session.
type Config[S any] struct {
	// ResourceID is passed to the Fetcher and used in logs.
	ResourceID string
	// Interval between cycles. Default: 30s.
	Interval time.Duration
	// Timeout bounds one fetch-and-decode step. Default: 10s.
	Timeout time.Duration
	Fetcher Fetcher
	Decode  DecodeFunc[S]
	// IsTerminal ends the session after the render of a snapshot for which
	// it returns true. Nil means poll until stopped.
	IsTerminal func(S) bool
	Views      []View[S]
	// MaxFailures is the number of consecutive failures after which the
	// status flips from stale to failed. Default: 3.
	MaxFailures int
	// ContinueOnFatal keeps polling after errors marked with Fatal. By
	// default a fatal fetch error ends the session.
	ContinueOnFatal bool
	// OnCycle, when set, is called at the end of every cycle.
	OnCycle func(Outcome)
	Logger  *slog.Logger
}

func (c *Config[S]) defaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c *Config[S]) validate() error {
	if c.Fetcher == nil {
		return errors.New("poll: Fetcher is required")
	}
	if c.Decode == nil {
		return errors.New("poll: Decode is required")
	}
	return nil
}

// Stats are point-in-time counters.
type Stats struct {
	Cycles       int64 `json:"cycles"`
	Changes      int64 `json:"changes"`
	Unchanged    int64 `json:"unchanged"`
	Failures     int64 `json:"failures"`
	RenderErrors int64 `json:"render_errors"`
	DroppedTicks int64 `json:"dropped_ticks"`
}

// Session is one running poll loop. All methods are safe for concurrent use.
type Session[S any] struct {
	cfg    Config[S]
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	refresh  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu          sync.RWMutex
	snapshot    S
	hasSnapshot bool
	fingerprint Fingerprint
	hasPrint    bool
	// pending holds a fetched body whose decode failed. A later 304 refers
	// to it, so it is decoded again instead of counting as unchanged.
	pending []byte
	status      Status
	state       State
	err         error

	cycles       atomic.Int64
	changes      atomic.Int64
	unchanged    atomic.Int64
	failures     atomic.Int64
	renderErrors atomic.Int64
	dropped      atomic.Int64
}

// Start validates cfg and launches the poll loop. The first cycle runs
// immediately. The session ends when ctx is cancelled, Stop is called, the
// terminal predicate fires or a fatal error occurs.
func Start[S any](ctx context.Context, cfg Config[S]) (*Session[S], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.defaults()

	sctx, cancel := context.WithCancel(ctx)
	s := &Session[S]{
		cfg:     cfg,
		log:     cfg.Logger.With("resource", cfg.ResourceID),
		ctx:     sctx,
		cancel:  cancel,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		state:   StateRunning,
	}
	go s.run()
	return s, nil
}

// Stop cancels the session. Any in-flight fetch is aborted and its result
// discarded. Stop never blocks and may be called any number of times, also
// from inside a View.
func (s *Session[S]) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateStopped
		}
		s.mu.Unlock()
		s.cancel()
	})
}

// Refresh requests an out-of-band cycle. Requests made while one is already
// pending are coalesced.
func (s *Session[S]) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Done is closed once the poll loop has exited.
func (s *Session[S]) Done() <-chan struct{} { return s.done }

// Wait blocks until the loop exits and returns the fatal error that ended it,
// ErrStopped if it was stopped, or nil if the terminal predicate fired.
func (s *Session[S]) Wait() error {
	<-s.done
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case StateFailed:
		return s.err
	case StateStopped:
		return ErrStopped
	}
	return nil
}

// Err returns the fatal error that ended the session, if any.
func (s *Session[S]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// State returns the lifecycle state.
func (s *Session[S]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the last committed snapshot.
func (s *Session[S]) Snapshot() (S, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// Fingerprint returns the fingerprint of the last rendered body.
func (s *Session[S]) Fingerprint() (Fingerprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fingerprint, s.hasPrint
}

// Status returns the current health.
func (s *Session[S]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Stats returns the current counters.
func (s *Session[S]) Stats() Stats {
	return Stats{
		Cycles:       s.cycles.Load(),
		Changes:      s.changes.Load(),
		Unchanged:    s.unchanged.Load(),
		Failures:     s.failures.Load(),
		RenderErrors: s.renderErrors.Load(),
		DroppedTicks: s.dropped.Load(),
	}
}

// ResourceID returns the polled resource.
func (s *Session[S]) ResourceID() string { return s.cfg.ResourceID }

func (s *Session[S]) run() {
	defer close(s.done)
	defer s.cancel()

	s.log.Info("poll: session started", "interval", s.cfg.Interval, "timeout", s.cfg.Timeout)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		outcome := s.cycle()
		if s.cfg.OnCycle != nil {
			s.cfg.OnCycle(outcome)
		}
		switch outcome {
		case OutcomeTerminal, OutcomeFatal, OutcomeDiscarded:
			s.log.Info("poll: session ended", "outcome", outcome.String(), "cycles", s.cycles.Load())
			return
		}

		// A tick that fired while the cycle ran is dropped rather than
		// starting the next cycle back to back.
		select {
		case <-ticker.C:
			s.dropped.Add(1)
		default:
		}

		select {
		case <-s.ctx.Done():
			s.finishStopped()
			s.log.Info("poll: session stopped", "cycles", s.cycles.Load())
			return
		case <-ticker.C:
		case <-s.refresh:
		}
	}
}

func (s *Session[S]) cycle() Outcome {
	s.cycles.Add(1)
	if s.ctx.Err() != nil {
		s.finishStopped()
		return OutcomeDiscarded
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.Timeout)
	defer cancel()

	body, err := s.fetch(ctx)
	if s.ctx.Err() != nil {
		s.finishStopped()
		return OutcomeDiscarded
	}
	if errors.Is(err, ErrNotModified) {
		s.mu.RLock()
		body = s.pending
		s.mu.RUnlock()
		if body == nil {
			if snap, ok := s.unrendered(); ok {
				return s.show(snap, s.resetStatus())
			}
			s.unchanged.Add(1)
			s.recovered()
			return OutcomeUnchanged
		}
	} else if err != nil {
		return s.fail(fmt.Errorf("fetch %s: %w", s.cfg.ResourceID, err))
	}

	fp := FingerprintOf(body)
	if prev, ok := s.Fingerprint(); ok && prev == fp {
		s.mu.Lock()
		s.pending = nil
		s.mu.Unlock()
		s.unchanged.Add(1)
		s.recovered()
		return OutcomeUnchanged
	}

	snap, err := s.decode(ctx, body)
	if s.ctx.Err() != nil {
		s.finishStopped()
		return OutcomeDiscarded
	}
	if err != nil {
		s.mu.Lock()
		s.pending = body
		s.mu.Unlock()
		return s.fail(fmt.Errorf("decode %s: %w", s.cfg.ResourceID, err))
	}

	s.mu.Lock()
	s.snapshot = snap
	s.hasSnapshot = true
	s.fingerprint = fp
	s.pending = nil
	s.mu.Unlock()
	s.changes.Add(1)

	return s.show(snap, s.resetStatus())
}

// fetch calls the Fetcher. A 304 with no snapshot and no pending body has
// nothing to compare against (the validators came from another session
// sharing the client), so the fetch is repeated unconditionally.
func (s *Session[S]) fetch(ctx context.Context) ([]byte, error) {
	body, err := s.cfg.Fetcher.Fetch(ctx, s.cfg.ResourceID)
	if !errors.Is(err, ErrNotModified) {
		return body, err
	}
	inv, ok := s.cfg.Fetcher.(Invalidator)
	if !ok {
		return body, err
	}
	s.mu.RLock()
	baseline := s.hasSnapshot || s.pending != nil
	s.mu.RUnlock()
	if baseline {
		return body, err
	}
	s.log.Debug("poll: not modified without a baseline, refetching")
	inv.Invalidate(s.cfg.ResourceID)
	return s.cfg.Fetcher.Fetch(ctx, s.cfg.ResourceID)
}

// show renders snap to every view, publishes st and applies the terminal
// predicate. A failed render leaves the fingerprint unset so the next cycle
// renders again even if the upstream body has not moved.
func (s *Session[S]) show(snap S, st Status) Outcome {
	ok := s.renderAll(snap)
	s.mu.Lock()
	s.hasPrint = ok
	s.mu.Unlock()
	if s.ctx.Err() != nil {
		s.finishStopped()
		return OutcomeDiscarded
	}
	s.publishStatus(st)

	if s.cfg.IsTerminal != nil && s.cfg.IsTerminal(snap) {
		s.mu.Lock()
		s.state = StateTerminal
		s.mu.Unlock()
		s.cancel()
		return OutcomeTerminal
	}
	return OutcomeChanged
}

// unrendered returns the committed snapshot when its last render failed.
func (s *Session[S]) unrendered() (S, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot && !s.hasPrint
}

func (s *Session[S]) resetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{LastSuccess: time.Now()}
	return s.status
}

func (s *Session[S]) decode(ctx context.Context, body []byte) (snap S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode panic: %v", r)
		}
	}()
	return s.cfg.Decode(ctx, body)
}

func (s *Session[S]) renderAll(snap S) bool {
	ok := true
	for i, v := range s.cfg.Views {
		if s.ctx.Err() != nil {
			return ok
		}
		if err := s.renderView(v, snap); err != nil {
			ok = false
			s.renderErrors.Add(1)
			s.log.Error("poll: render failed", "view", i, "error", err)
		}
	}
	return ok
}

func (s *Session[S]) renderView(v View[S], snap S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panic: %v", r)
		}
	}()
	st := v.CaptureState()
	err = v.Render(s.ctx, snap)
	v.ReapplyState(st)
	return err
}

func (s *Session[S]) fail(err error) Outcome {
	s.failures.Add(1)
	fatal := IsFatal(err) && !s.cfg.ContinueOnFatal

	s.mu.Lock()
	s.status.Failures++
	s.status.LastErr = err
	s.status.Stale = true
	s.status.Failed = fatal || s.status.Failures >= s.cfg.MaxFailures
	if fatal {
		s.status.Stopped = true
		s.state = StateFailed
		s.err = err
	}
	st := s.status
	s.mu.Unlock()

	s.publishStatus(st)

	if fatal {
		s.log.Error("poll: fatal fetch error, stopping", "error", err)
		s.cancel()
		return OutcomeFatal
	}
	s.log.Warn("poll: cycle failed", "error", err, "consecutive", st.Failures)
	return OutcomeFailed
}

// recovered clears a failure streak after an unchanged cycle. Views are only
// touched when there was a streak to clear, and never before a snapshot was
// committed.
func (s *Session[S]) recovered() {
	s.mu.Lock()
	if s.status.Failures == 0 || !s.hasSnapshot {
		s.mu.Unlock()
		return
	}
	s.status = Status{LastSuccess: time.Now()}
	st := s.status
	s.mu.Unlock()
	s.publishStatus(st)
}

func (s *Session[S]) finishStopped() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateStopped
	}
	s.mu.Unlock()
}

func (s *Session[S]) publishStatus(st Status) {
	for _, v := range s.cfg.Views {
		sv, ok := any(v).(StatusView)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("poll: status view panic", "panic", r)
				}
			}()
			sv.ShowStatus(st)
		}()
	}
}
