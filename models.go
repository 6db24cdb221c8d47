package scoreboard

import (
	"fmt"
	"time"

	"live-scoreboard/feeds"
	"live-scoreboard/notify"
)

const (
	DefaultInterval       = 30 * time.Second
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxPollsPerRun = 500
	DefaultTrackingWindow = 8 * time.Hour
)

// ScoreboardRequest starts a ScoreboardWorkflow. State is empty on the first
// run and carries progress across continue-as-new.
type ScoreboardRequest struct {
	Sport    string        `json:"sport"`
	Resource string        `json:"resource"`
	Start    time.Time     `json:"start,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty"`

	MaxPollsPerRun int           `json:"max_polls_per_run,omitempty"`
	TrackingWindow time.Duration `json:"tracking_window,omitempty"`

	NotificationTypes    []notify.Type `json:"notification_types,omitempty"`
	NotificationChannels []string      `json:"notification_channels,omitempty"`

	State ScoreboardState `json:"state"`
}

func (r *ScoreboardRequest) defaults() {
	if r.Interval <= 0 {
		r.Interval = DefaultInterval
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultFetchTimeout
	}
	if r.MaxPollsPerRun <= 0 {
		r.MaxPollsPerRun = DefaultMaxPollsPerRun
	}
	if r.TrackingWindow <= 0 {
		r.TrackingWindow = DefaultTrackingWindow
	}
	if len(r.NotificationTypes) == 0 {
		r.NotificationTypes = notify.DefaultTypes
	}
	if len(r.NotificationChannels) == 0 {
		r.NotificationChannels = []string{notify.ChannelLogger}
	}
}

// WorkflowID is the id of the ScoreboardWorkflow for one resource, so a
// resource is never tracked twice.
func (r ScoreboardRequest) WorkflowID() string {
	return WorkflowID(r.Sport, r.Resource)
}

func WorkflowID(sport, resource string) string {
	return fmt.Sprintf("scoreboard-%s-%s", sport, resource)
}

// ScoreboardState is what a ScoreboardWorkflow knows between polls.
type ScoreboardState struct {
	Fingerprint string         `json:"fingerprint,omitempty"`
	Event       *feeds.Event   `json:"event,omitempty"`
	Tracker     notify.Tracker `json:"tracker"`
	Polls       int            `json:"polls"`
	Failures    int            `json:"failures"`
	Deadline    time.Time      `json:"deadline,omitempty"`
}

// FetchRequest is the input of the FetchFeed activity.
type FetchRequest struct {
	Sport       string `json:"sport"`
	Resource    string `json:"resource"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// FeedResult is the output of the FetchFeed activity. Event is nil when the
// body still hashes to the fingerprint the workflow sent.
type FeedResult struct {
	Fingerprint string       `json:"fingerprint"`
	Event       *feeds.Event `json:"event,omitempty"`
	NotModified bool         `json:"not_modified"`
}

// ScoreboardInfo is the answer to SnapshotQuery.
type ScoreboardInfo struct {
	Sport       string       `json:"sport"`
	Resource    string       `json:"resource"`
	Event       *feeds.Event `json:"event,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	Polls       int          `json:"polls"`
	Failures    int          `json:"failures"`
	Stale       bool         `json:"stale"`
	Deadline    time.Time    `json:"deadline"`
}

// TrackingRequest starts a CollectGamesWorkflow.
type TrackingRequest struct {
	Sport       string   `json:"sport"`
	Teams       []string `json:"teams"`
	Conferences []string `json:"conferences"`

	Interval             time.Duration `json:"interval,omitempty"`
	NotificationTypes    []notify.Type `json:"notification_types,omitempty"`
	NotificationChannels []string      `json:"notification_channels,omitempty"`
}

// SendNotifications is the input of the SendNotifications activity.
type SendNotifications struct {
	Channel          string                `json:"channel"`
	NotificationList []notify.Notification `json:"notification_list"`
}
