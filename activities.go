package scoreboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"live-scoreboard/config"
	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/notify"
	"live-scoreboard/poll"
)

// Activities holds what the activities share on one worker. Register a
// pointer to it with the worker.
type Activities struct {
	Client    *fetch.Client
	Temporal  client.Client
	Senders   map[string]notify.Sender
	TaskQueue string
	// BaseURLs overrides the public API of a sport, keyed by sport.
	BaseURLs map[string]string
}

func (a *Activities) feed(sport string) (feeds.Feed, error) {
	f, err := feeds.New(sport, a.BaseURLs[sport])
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeFatalFetch, err)
	}
	return f, nil
}

// FetchFeed fetches and decodes one resource. The body is only decoded when
// its fingerprint differs from req.Fingerprint.
func (a *Activities) FetchFeed(ctx context.Context, req FetchRequest) (FeedResult, error) {
	logger := activity.GetLogger(ctx)

	f, err := a.feed(req.Sport)
	if err != nil {
		return FeedResult{}, err
	}
	src := feeds.NewSource(f, a.Client)

	// Conditional requests are left to in-process sessions: the validator
	// cache of the client is shared by every workflow on this worker.
	body, err := a.Client.Get(ctx, f.URL(req.Resource))
	if err != nil {
		return FeedResult{}, fetchError(req, err)
	}
	fp := poll.FingerprintOf(body).String()
	if fp == req.Fingerprint {
		return FeedResult{Fingerprint: fp, NotModified: true}, nil
	}

	ev, err := src.Decode(ctx, body)
	if err != nil {
		return FeedResult{}, fetchError(req, err)
	}
	logger.Info("Fetched feed", "sport", req.Sport, "resource", req.Resource, "state", ev.State, "score", ev.ScoreLine())
	return FeedResult{Fingerprint: fp, Event: &ev}, nil
}

func fetchError(req FetchRequest, err error) error {
	msg := fmt.Sprintf("fetch %s/%s: %v", req.Sport, req.Resource, err)
	if poll.IsFatal(err) {
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeFatalFetch, err)
	}
	return temporal.NewApplicationErrorWithCause(msg, "FetchFailed", err)
}

func isFatalFetch(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == ErrTypeFatalFetch
}

// ListGames reads the league scoreboard of req.Sport and keeps the games
// that involve the requested teams or conferences.
func (a *Activities) ListGames(ctx context.Context, req TrackingRequest) ([]feeds.Game, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Fetching games from ESPN API", "sport", req.Sport)

	f, err := a.feed(req.Sport)
	if err != nil {
		return nil, err
	}
	espn, ok := f.(*feeds.ESPN)
	if !ok {
		err := fmt.Errorf("game discovery is not available for %s", req.Sport)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "Unsupported", err)
	}

	body, err := a.Client.Get(ctx, espn.ScoreboardURL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch games: %w", err)
	}
	all, err := espn.ParseScoreboard(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scoreboard: %w", err)
	}

	var games []feeds.Game
	for _, g := range all {
		if g.Involves(req.Teams, req.Conferences) {
			logger.Info("Matched game", "name", g.Name, "state", g.State)
			games = append(games, g)
		}
	}
	logger.Info("Fetched games", "total", len(all), "matched", len(games))
	return games, nil
}

// StartScoreboard starts the ScoreboardWorkflow of one resource. A workflow
// already running for it is left alone.
func (a *Activities) StartScoreboard(ctx context.Context, req ScoreboardRequest) (string, error) {
	if a.Temporal == nil {
		return "", temporal.NewNonRetryableApplicationError("no Temporal client configured", "Unsupported", nil)
	}
	logger := activity.GetLogger(ctx)

	taskQueue := a.TaskQueue
	if taskQueue == "" {
		taskQueue = TaskQueueName
	}
	options := client.StartWorkflowOptions{
		ID:        req.WorkflowID(),
		TaskQueue: taskQueue,
	}
	we, err := a.Temporal.ExecuteWorkflow(ctx, options, ScoreboardWorkflow, req)
	if err != nil {
		return "", fmt.Errorf("unable to execute workflow: %w", err)
	}
	logger.Info("Started workflow", "WorkflowID", we.GetID(), "RunID", we.GetRunID())
	return we.GetID(), nil
}

// SendNotifications delivers a batch to one channel.
func (a *Activities) SendNotifications(ctx context.Context, req SendNotifications) error {
	sender, ok := a.Senders[req.Channel]
	if !ok {
		err := fmt.Errorf("notification channel %q is not configured", req.Channel)
		return temporal.NewNonRetryableApplicationError(err.Error(), "Unsupported", err)
	}
	return sender.Send(ctx, req.NotificationList)
}

// NewSenders builds one sender per configured notification channel.
func NewSenders(cfg config.Config, logger *slog.Logger) (map[string]notify.Sender, error) {
	opts := notify.Options{
		SlackWebhookURL: cfg.SlackWebhookURL,
		TelegramToken:   cfg.TelegramToken,
		Logger:          logger,
	}
	if cfg.TelegramChatID != "" {
		id, err := strconv.ParseInt(cfg.TelegramChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be numeric: %w", err)
		}
		opts.TelegramChatID = id
	}

	senders := make(map[string]notify.Sender, len(cfg.NotificationChannels))
	for _, ch := range cfg.NotificationChannels {
		s, err := notify.NewSender(ch, opts)
		if err != nil {
			return nil, err
		}
		senders[ch] = s
	}
	return senders, nil
}
