package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	scoreboard "live-scoreboard"
	"live-scoreboard/config"
	"live-scoreboard/notify"
)

func main() {
	sport := flag.String("sport", "college-football", "feed to use")
	resource := flag.String("resource", "", "track one game or race instead of discovering games")
	teams := flag.String("teams", "", "comma separated team ids or abbreviations")
	conferences := flag.String("conferences", "", "comma separated conference ids")
	interval := flag.Duration("interval", 0, "poll interval (default POLL_INTERVAL)")
	flag.Parse()

	scoreboard.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Invalid configuration", err)
	}
	if err := cfg.RequireTemporal(); err != nil {
		log.Fatalln(err)
	}
	if *interval <= 0 {
		*interval = cfg.PollInterval
	}

	c, err := client.Dial(scoreboard.GetClientOptions(cfg))
	if err != nil {
		log.Fatalln("Unable to create client", err)
	}
	defer c.Close()

	types := notify.ParseTypes(strings.Join(cfg.NotificationTypes, ","))

	var we client.WorkflowRun
	if *resource != "" {
		req := scoreboard.ScoreboardRequest{
			Sport:                *sport,
			Resource:             *resource,
			Interval:             *interval,
			Timeout:              cfg.FetchTimeout,
			NotificationTypes:    types,
			NotificationChannels: cfg.NotificationChannels,
		}
		options := client.StartWorkflowOptions{ID: req.WorkflowID(), TaskQueue: cfg.TaskQueue}
		we, err = c.ExecuteWorkflow(context.Background(), options, scoreboard.ScoreboardWorkflow, req)
	} else {
		options := client.StartWorkflowOptions{
			ID:        fmt.Sprintf("collect-%s-%s", *sport, time.Now().Format("20060102-150405")),
			TaskQueue: cfg.TaskQueue,
		}
		we, err = c.ExecuteWorkflow(context.Background(), options, scoreboard.CollectGamesWorkflow, scoreboard.TrackingRequest{
			Sport:                *sport,
			Teams:                splitFlag(*teams),
			Conferences:          splitFlag(*conferences),
			Interval:             *interval,
			NotificationTypes:    types,
			NotificationChannels: cfg.NotificationChannels,
		})
	}
	if err != nil {
		log.Fatalln("Unable to execute workflow", err)
	}
	log.Println("Started workflow", "WorkflowID", we.GetID(), "RunID", we.GetRunID())
}

func splitFlag(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
