package scoreboard

import "live-scoreboard/config"

// TaskQueueName is used when TASK_QUEUE is not set.
const TaskQueueName = config.DefaultTaskQueue

// SnapshotQuery returns the ScoreboardInfo of a running ScoreboardWorkflow.
const SnapshotQuery = "snapshot"

// ErrTypeFatalFetch marks fetch errors that polling again cannot fix.
const ErrTypeFatalFetch = "FatalFetch"

// Feed URLs follow the pattern of each upstream API; see the feeds package.
// ESPN uses https://site.api.espn.com/apis/site/v2/sports/{SPORT}/{LEAGUE}/summary?event={ID}
// for one game and .../scoreboard for the league day, which discovery reads.
