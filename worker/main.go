package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	scoreboard "live-scoreboard"
	"live-scoreboard/config"
	"live-scoreboard/fetch"
)

func main() {
	logger := scoreboard.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Invalid configuration", err)
	}
	if err := cfg.RequireTemporal(); err != nil {
		log.Fatalln(err)
	}

	c, err := client.Dial(scoreboard.GetClientOptions(cfg))
	if err != nil {
		log.Fatalln("Unable to create Temporal client", err)
	}
	defer c.Close()

	senders, err := scoreboard.NewSenders(cfg, logger)
	if err != nil {
		log.Fatalln("Unable to configure notifications", err)
	}

	w := worker.New(c, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflow(scoreboard.CollectGamesWorkflow)
	w.RegisterWorkflow(scoreboard.ScoreboardWorkflow)

	w.RegisterActivity(&scoreboard.Activities{
		Client:    fetch.New(fetch.Config{Timeout: cfg.FetchTimeout, Logger: logger}),
		Temporal:  c,
		Senders:   senders,
		TaskQueue: cfg.TaskQueue,
	})

	log.Println("Starting Temporal worker for live scoreboards on", cfg.TaskQueue)
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalln("Unable to start worker", err)
	}
}
