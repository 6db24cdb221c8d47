// Package feeds adapts the public sports stats APIs to a single Event
// snapshot. Each Feed knows how to build the URL of a live document and how
// to decode it, fetching derived documents through the Getter it is given.
package feeds

import (
	"context"
	"fmt"
	"sort"
	"time"

	"live-scoreboard/fetch"
	"live-scoreboard/poll"
)

// Getter fetches a derived document during Decode.
type Getter func(ctx context.Context, url string) ([]byte, error)

type Feed interface {
	Sport() string
	URL(resource string) string
	Decode(ctx context.Context, body []byte, get Getter) (Event, error)
}

type factory func(baseURL string) Feed

var registry = map[string]factory{
	"college-football": func(base string) Feed { return NewESPN("football", "college-football", base) },
	"nfl":              func(base string) Feed { return NewESPN("football", "nfl", base) },
	"mlb":              func(base string) Feed { return NewMLB(base) },
	"nhl":              func(base string) Feed { return NewNHL(base) },
	"f1":               func(base string) Feed { return NewF1(base) },
}

// Sports lists the registered sport keys.
func Sports() []string {
	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the feed for sport against its public API.
func Lookup(sport string) (Feed, error) {
	return New(sport, "")
}

// New returns the feed for sport against baseURL; "" selects the public API.
func New(sport, baseURL string) (Feed, error) {
	f, ok := registry[sport]
	if !ok {
		return nil, fmt.Errorf("unknown sport %q", sport)
	}
	return f(baseURL), nil
}

// Source binds a Feed to an HTTP client and produces everything a poll
// session needs.
type Source struct {
	Feed   Feed
	Client *fetch.Client
}

func NewSource(feed Feed, client *fetch.Client) Source {
	return Source{Feed: feed, Client: client}
}

// Fetch implements poll.Fetcher with a conditional GET.
func (s Source) Fetch(ctx context.Context, resource string) ([]byte, error) {
	return s.Client.Poll(ctx, s.Feed.URL(resource))
}

// Invalidate implements poll.Invalidator by dropping the stored validators
// for the resource URL.
func (s Source) Invalidate(resource string) {
	s.Client.Forget(s.Feed.URL(resource))
}

// Decode implements poll.DecodeFunc[Event]. Derived fetches are unconditional.
func (s Source) Decode(ctx context.Context, body []byte) (Event, error) {
	ev, err := s.Feed.Decode(ctx, body, s.Client.Get)
	if err != nil {
		return Event{}, err
	}
	if ev.Sport == "" {
		ev.Sport = s.Feed.Sport()
	}
	return ev, nil
}

// SessionConfig returns a poll configuration that stops once the event is
// final.
func (s Source) SessionConfig(resource string, interval time.Duration, views ...poll.View[Event]) poll.Config[Event] {
	return poll.Config[Event]{
		ResourceID: resource,
		Interval:   interval,
		Fetcher:    s,
		Decode:     s.Decode,
		IsTerminal: IsFinal,
		Views:      views,
	}
}
