package scoreboard

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"live-scoreboard/feeds"
)

// CollectGamesWorkflow reads a league scoreboard and starts one
// ScoreboardWorkflow for every upcoming or live game that matches the
// request. It returns the number of scoreboards started.
func CollectGamesWorkflow(ctx workflow.Context, req TrackingRequest) (int, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting Collect Games Workflow.", "sport", req.Sport)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	var a *Activities
	var games []feeds.Game
	err := workflow.ExecuteActivity(ctx, a.ListGames, req).Get(ctx, &games)
	if err != nil {
		logger.Error("Failed to fetch games", "error", err)
		return 0, err
	}
	logger.Info("Fetched games", "count", len(games))

	started := 0
	for _, game := range games {
		if game.State == feeds.StatePost {
			continue
		}
		sreq := ScoreboardRequest{
			Sport:                req.Sport,
			Resource:             game.EventID,
			Start:                game.Start,
			Interval:             req.Interval,
			NotificationTypes:    req.NotificationTypes,
			NotificationChannels: req.NotificationChannels,
		}
		err := workflow.ExecuteActivity(ctx, a.StartScoreboard, sreq).Get(ctx, nil)
		if err != nil {
			logger.Error("Failed to start scoreboard workflow", "game", game.ID, "error", err)
			return started, err
		}
		started++
	}

	logger.Info("Collect Games Workflow completed.", "started", started)
	return started, nil
}
