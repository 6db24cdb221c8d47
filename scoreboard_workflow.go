package scoreboard

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"live-scoreboard/feeds"
)

// ScoreboardWorkflow polls one resource until it is final, announcing score
// changes on the configured channels. It is the durable counterpart of a
// poll.Session: the fingerprint comparison, terminal predicate and
// fatal/transient split are the same.
func ScoreboardWorkflow(ctx workflow.Context, req ScoreboardRequest) (string, error) {
	logger := workflow.GetLogger(ctx)
	req.defaults()
	state := req.State
	state.Tracker.Types = req.NotificationTypes

	logger.Info("Starting Scoreboard Workflow", "sport", req.Sport, "resource", req.Resource, "polls", state.Polls)

	err := workflow.SetQueryHandler(ctx, SnapshotQuery, func() (ScoreboardInfo, error) {
		return ScoreboardInfo{
			Sport:       req.Sport,
			Resource:    req.Resource,
			Event:       state.Event,
			Fingerprint: state.Fingerprint,
			Polls:       state.Polls,
			Failures:    state.Failures,
			Stale:       state.Failures > 0,
			Deadline:    state.Deadline,
		}, nil
	})
	if err != nil {
		logger.Error("Failed to set query handler", "error", err)
		return "", err
	}

	fetchCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: req.Timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        req.Interval,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeFatalFetch},
		},
	})
	notifyCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	})

	if req.Start.After(workflow.Now(ctx)) {
		logger.Info("Waiting for game to start", "resource", req.Resource, "startTime", req.Start)
		if err := workflow.NewTimer(ctx, req.Start.Sub(workflow.Now(ctx))).Get(ctx, nil); err != nil {
			return "", err
		}
	}
	if state.Deadline.IsZero() {
		state.Deadline = workflow.Now(ctx).Add(req.TrackingWindow)
	}

	var a *Activities
	for run := 0; ; run++ {
		if !workflow.Now(ctx).Before(state.Deadline) {
			logger.Warn("Tracking window ended before the event was final", "resource", req.Resource)
			return fmt.Sprintf("Tracking window ended: %s", lastScore(state.Event)), nil
		}
		if run >= req.MaxPollsPerRun {
			logger.Info("Continuing as new", "resource", req.Resource, "polls", state.Polls)
			next := req
			next.State = state
			return "", workflow.NewContinueAsNewError(ctx, ScoreboardWorkflow, next)
		}

		var res FeedResult
		err := workflow.ExecuteActivity(fetchCtx, a.FetchFeed, FetchRequest{
			Sport:       req.Sport,
			Resource:    req.Resource,
			Fingerprint: state.Fingerprint,
		}).Get(ctx, &res)
		state.Polls++

		switch {
		case err != nil && isFatalFetch(err):
			logger.Error("Fatal fetch error, stopping", "resource", req.Resource, "error", err)
			return "", err
		case err != nil:
			state.Failures++
			logger.Warn("Poll failed, keeping last snapshot", "resource", req.Resource, "consecutive", state.Failures, "error", err)
		case res.NotModified || res.Event == nil || res.Fingerprint == state.Fingerprint:
			state.Failures = 0
		default:
			state.Failures = 0
			state.Fingerprint = res.Fingerprint
			state.Event = res.Event

			list := state.Tracker.Observe(*res.Event)
			if len(list) > 0 {
				logger.Info("Notifications to send", "count", len(list))
				for _, channel := range req.NotificationChannels {
					err := workflow.ExecuteActivity(notifyCtx, a.SendNotifications, SendNotifications{
						Channel:          channel,
						NotificationList: list,
					}).Get(ctx, nil)
					if err != nil {
						logger.Error("Failed to send notification", "channel", channel, "error", err)
					}
				}
			}

			if feeds.IsFinal(*res.Event) {
				logger.Info("Scoreboard workflow completed", "resource", req.Resource, "polls", state.Polls)
				return fmt.Sprintf("Final score: %s", lastScore(res.Event)), nil
			}
		}

		if err := workflow.NewTimer(ctx, req.Interval).Get(ctx, nil); err != nil {
			return "", err
		}
	}
}

func lastScore(ev *feeds.Event) string {
	if ev == nil {
		return "no data"
	}
	return ev.ScoreLine()
}
