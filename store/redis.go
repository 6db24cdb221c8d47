package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"live-scoreboard/feeds"
	"live-scoreboard/poll"
)

// Publisher keeps the last-known-good snapshot of every event in Redis and
// announces each change on a pub/sub channel, so other processes can show
// a scoreboard without polling upstream themselves.
type Publisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPublisher connects to addr and checks the connection.
func NewPublisher(ctx context.Context, addr string, ttl time.Duration) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("store: connect redis: %w", err)
	}
	return NewPublisherWithClient(client, ttl), nil
}

func NewPublisherWithClient(client *redis.Client, ttl time.Duration) *Publisher {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Publisher{client: client, prefix: "scoreboard", ttl: ttl}
}

func (p *Publisher) key(sport, eventID string) string {
	return fmt.Sprintf("%s:%s:%s", p.prefix, sport, eventID)
}

// Channel is the pub/sub channel that carries updates of one event.
func (p *Publisher) Channel(sport, eventID string) string {
	return p.key(sport, eventID) + ":updates"
}

// Publish stores ev and notifies subscribers.
func (p *Publisher) Publish(ctx context.Context, ev feeds.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("store: marshal event: %w", err)
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.key(ev.Sport, ev.ID), data, p.ttl)
	pipe.Publish(ctx, p.Channel(ev.Sport, ev.ID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store: publish %s: %w", ev.ID, err)
	}
	return nil
}

// LastKnownGood returns the stored snapshot of an event.
func (p *Publisher) LastKnownGood(ctx context.Context, sport, eventID string) (feeds.Event, bool, error) {
	data, err := p.client.Get(ctx, p.key(sport, eventID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return feeds.Event{}, false, nil
	}
	if err != nil {
		return feeds.Event{}, false, fmt.Errorf("store: get %s: %w", eventID, err)
	}
	var ev feeds.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return feeds.Event{}, false, fmt.Errorf("store: decode %s: %w", eventID, err)
	}
	return ev, true, nil
}

// Subscribe streams updates of one event until ctx ends.
func (p *Publisher) Subscribe(ctx context.Context, sport, eventID string) (<-chan feeds.Event, error) {
	sub := p.client.Subscribe(ctx, p.Channel(sport, eventID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("store: subscribe: %w", err)
	}
	out := make(chan feeds.Event)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev feeds.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Render implements poll.View.
func (p *Publisher) Render(ctx context.Context, ev feeds.Event) error {
	return p.Publish(ctx, ev)
}

func (p *Publisher) CaptureState() poll.InteractionState { return poll.InteractionState{} }

func (p *Publisher) ReapplyState(poll.InteractionState) {}
