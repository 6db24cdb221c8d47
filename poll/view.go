package poll

import (
	"context"
	"time"
)

// View is a render target driven by a Session. After every changed snapshot
// the session calls CaptureState, Render and ReapplyState in that order, all
// from the session goroutine. Implementations that also accept user input
// from other goroutines must guard their state themselves.
type View[S any] interface {
	Render(ctx context.Context, snap S) error
	CaptureState() InteractionState
	ReapplyState(st InteractionState)
}

// Status describes the health of a session as shown to the user.
type Status struct {
	// Stale is set while the last cycle failed and the view still shows the
	// last-known-good snapshot.
	Stale bool `json:"stale"`
	// Failed is set after MaxFailures consecutive failures or a fatal error;
	// views switch to an explicit error message.
	Failed      bool      `json:"failed"`
	Stopped     bool      `json:"stopped"`
	Failures    int       `json:"failures"`
	LastErr     error     `json:"-"`
	LastSuccess time.Time `json:"last_success"`
}

// StatusView is implemented by views that show a stale or error indicator.
// ShowStatus is called only when the status changes or after a render.
type StatusView interface {
	ShowStatus(st Status)
}
