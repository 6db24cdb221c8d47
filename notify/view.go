package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
)

// View announces changes of an in-process session. It has no interaction
// state of its own.
type View struct {
	mu      sync.Mutex
	tracker *Tracker
	senders map[string]Sender
	log     *slog.Logger
}

func NewView(types []Type, senders map[string]Sender, logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{tracker: NewTracker(types), senders: senders, log: logger}
}

// Render sends the notifications due for ev to every channel. A failing
// channel does not keep the others from being tried.
func (v *View) Render(ctx context.Context, ev feeds.Event) error {
	v.mu.Lock()
	list := v.tracker.Observe(ev)
	v.mu.Unlock()
	if len(list) == 0 {
		return nil
	}

	var errs []error
	for name, s := range v.senders {
		if err := s.Send(ctx, list); err != nil {
			v.log.Error("notify: send failed", "channel", name, "event", ev.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (v *View) CaptureState() poll.InteractionState { return poll.InteractionState{} }

func (v *View) ReapplyState(poll.InteractionState) {}
