package scoreboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/testsuite"

	"live-scoreboard/config"
	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/notify"
)

const summaryJSON = `{
  "header": {
    "id": "401547417",
    "competitions": [{
      "id": "401547417",
      "date": "2023-10-14T19:30Z",
      "status": {"displayClock": "4:12", "period": 3, "type": {"state": "in", "shortDetail": "4:12 - 3rd"}},
      "competitors": [
        {"homeAway": "home", "score": "24", "team": {"id": "130", "displayName": "Michigan Wolverines", "abbreviation": "MICH", "conferenceId": "5"}},
        {"homeAway": "away", "score": "7", "team": {"id": "356", "displayName": "Indiana Hoosiers", "abbreviation": "IU", "conferenceId": "5"}}
      ]
    }]
  },
  "scoringPlays": []
}`

const scoreboardJSON = `{
  "events": [
    {
      "id": "401547417",
      "name": "Indiana Hoosiers at Michigan Wolverines",
      "competitions": [{
        "id": "401547417",
        "date": "2023-10-14T19:30Z",
        "status": {"type": {"state": "pre"}},
        "competitors": [
          {"homeAway": "away", "score": "0", "team": {"id": "356", "abbreviation": "IU", "conferenceId": "5"}},
          {"homeAway": "home", "score": "0", "team": {"id": "130", "abbreviation": "MICH", "conferenceId": "5"}}
        ]
      }]
    },
    {
      "id": "401547500",
      "name": "Texas Longhorns at Oklahoma Sooners",
      "competitions": [{
        "id": "401547500",
        "date": "2023-10-14T16:00Z",
        "status": {"type": {"state": "post", "completed": true}},
        "competitors": [
          {"homeAway": "home", "score": "34", "team": {"id": "201", "abbreviation": "OU", "conferenceId": "4"}},
          {"homeAway": "away", "score": "30", "team": {"id": "251", "abbreviation": "TEX", "conferenceId": "4"}}
        ]
      }]
    }
  ]
}`

func espnServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/football/college-football/summary", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("event") != "401547417" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(summaryJSON))
	})
	mux.HandleFunc("/football/college-football/scoreboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(scoreboardJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestActivities(t *testing.T) *Activities {
	srv := espnServer(t)
	return &Activities{
		Client:   fetch.New(fetch.Config{}),
		BaseURLs: map[string]string{"college-football": srv.URL, "nhl": srv.URL},
	}
}

func TestFetchFeed(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	a := newTestActivities(t)
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "college-football", Resource: "401547417"})
	require.NoError(t, err)
	var res FeedResult
	require.NoError(t, val.Get(&res))

	require.NotNil(t, res.Event)
	assert.False(t, res.NotModified)
	assert.Len(t, res.Fingerprint, 16)
	assert.Equal(t, "IU 7 - 24 MICH", res.Event.ScoreLine())
	assert.Equal(t, "college-football", res.Event.Sport)

	val, err = env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "college-football", Resource: "401547417", Fingerprint: res.Fingerprint})
	require.NoError(t, err)
	var again FeedResult
	require.NoError(t, val.Get(&again))
	assert.True(t, again.NotModified)
	assert.Nil(t, again.Event)
	assert.Equal(t, res.Fingerprint, again.Fingerprint)
}

func TestFetchFeed_Errors(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	a := newTestActivities(t)
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "college-football", Resource: "missing"})
	require.Error(t, err)
	assert.True(t, isFatalFetch(err), "404 is fatal")

	_, err = env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "curling", Resource: "1"})
	require.Error(t, err)
	assert.True(t, isFatalFetch(err), "unknown sport is fatal")

	// No NHL routes on this server.
	_, err = env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "nhl", Resource: "2023020204"})
	require.Error(t, err)
	assert.True(t, isFatalFetch(err))
}

func TestFetchFeed_TransientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	a := &Activities{Client: fetch.New(fetch.Config{}), BaseURLs: map[string]string{"mlb": srv.URL}}
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.FetchFeed, FetchRequest{Sport: "mlb", Resource: "717465"})
	require.Error(t, err)
	assert.False(t, isFatalFetch(err))
}

func TestListGames(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	a := newTestActivities(t)
	env.RegisterActivity(a)

	tests := []struct {
		name string
		req  TrackingRequest
		want []string
	}{
		{"all games", TrackingRequest{Sport: "college-football"}, []string{"401547417", "401547500"}},
		{"by team", TrackingRequest{Sport: "college-football", Teams: []string{"mich"}}, []string{"401547417"}},
		{"by conference", TrackingRequest{Sport: "college-football", Conferences: []string{"4"}}, []string{"401547500"}},
		{"no match", TrackingRequest{Sport: "college-football", Teams: []string{"OSU"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := env.ExecuteActivity(a.ListGames, tt.req)
			require.NoError(t, err)
			var games []feeds.Game
			require.NoError(t, val.Get(&games))

			var ids []string
			for _, g := range games {
				ids = append(ids, g.EventID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err := env.ExecuteActivity(a.ListGames, TrackingRequest{Sport: "nhl"})
	assert.ErrorContains(t, err, "not available")
}

type mockTemporal struct {
	client.Client
	mock.Mock
}

func (m *mockTemporal) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	called := m.Called(options, args)
	run, _ := called.Get(0).(client.WorkflowRun)
	return run, called.Error(1)
}

type fakeRun struct {
	client.WorkflowRun
	id string
}

func (r fakeRun) GetID() string    { return r.id }
func (r fakeRun) GetRunID() string { return "run-1" }

func TestStartScoreboard(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	tc := &mockTemporal{}
	tc.On("ExecuteWorkflow", client.StartWorkflowOptions{
		ID:        "scoreboard-nfl-401547600",
		TaskQueue: "custom-queue",
	}, mock.Anything).Return(fakeRun{id: "scoreboard-nfl-401547600"}, nil)

	a := &Activities{Temporal: tc, TaskQueue: "custom-queue"}
	env.RegisterActivity(a)

	val, err := env.ExecuteActivity(a.StartScoreboard, ScoreboardRequest{Sport: "nfl", Resource: "401547600"})
	require.NoError(t, err)
	var id string
	require.NoError(t, val.Get(&id))
	assert.Equal(t, "scoreboard-nfl-401547600", id)
	tc.AssertExpectations(t)
}

func TestStartScoreboard_Errors(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	tc := &mockTemporal{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))
	a := &Activities{Temporal: tc}
	env.RegisterActivity(a)

	_, err := env.ExecuteActivity(a.StartScoreboard, ScoreboardRequest{Sport: "nfl", Resource: "1"})
	assert.ErrorContains(t, err, "unable to execute workflow")

	b := &Activities{}
	_, err = b.StartScoreboard(context.Background(), ScoreboardRequest{Sport: "nfl", Resource: "1"})
	assert.ErrorContains(t, err, "no Temporal client")
}

type recordingSender struct {
	got []notify.Notification
	err error
}

func (s *recordingSender) Send(_ context.Context, list []notify.Notification) error {
	s.got = append(s.got, list...)
	return s.err
}

func TestSendNotifications(t *testing.T) {
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()

	rec := &recordingSender{}
	a := &Activities{Senders: map[string]notify.Sender{"slack": rec}}
	env.RegisterActivity(a)

	list := []notify.Notification{{Type: notify.TypeFinal, EventID: "1", Title: "Final!"}}
	_, err := env.ExecuteActivity(a.SendNotifications, SendNotifications{Channel: "slack", NotificationList: list})
	require.NoError(t, err)
	assert.Equal(t, list, rec.got)

	_, err = env.ExecuteActivity(a.SendNotifications, SendNotifications{Channel: "telegram", NotificationList: list})
	assert.ErrorContains(t, err, "not configured")
}

func TestNewSenders(t *testing.T) {
	senders, err := NewSenders(config.Config{NotificationChannels: []string{"logger"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, notify.LogSender{}, senders["logger"])

	_, err = NewSenders(config.Config{NotificationChannels: []string{"slack"}}, nil)
	assert.ErrorContains(t, err, "SLACK_WEBHOOK_URL")

	_, err = NewSenders(config.Config{NotificationChannels: []string{"logger"}, TelegramChatID: "@channel"}, nil)
	assert.ErrorContains(t, err, "TELEGRAM_CHAT_ID")
}
