package main

import (
	"context"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/rivo/tview"

	"live-scoreboard/config"
	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/poll"
	"live-scoreboard/tui"
)

func main() {
	sport := flag.String("sport", "nhl", "feed to use")
	resource := flag.String("resource", "", "game or race to show")
	interval := flag.Duration("interval", 0, "poll interval (default POLL_INTERVAL)")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if *resource == "" {
		log.Fatalln("-resource is required")
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var out io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalln("Unable to open log file", err)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Invalid configuration", err)
	}
	if *interval <= 0 {
		*interval = cfg.PollInterval
	}

	feed, err := feeds.Lookup(*sport)
	if err != nil {
		log.Fatalln(err)
	}
	src := feeds.NewSource(feed, fetch.New(fetch.Config{Timeout: cfg.FetchTimeout, Logger: logger}))

	app := tview.NewApplication()
	board := tui.NewBoard(app)

	pcfg := src.SessionConfig(*resource, *interval, board)
	pcfg.Timeout = cfg.FetchTimeout
	pcfg.Logger = logger
	session, err := poll.Start(context.Background(), pcfg)
	if err != nil {
		log.Fatalln("Unable to start session", err)
	}
	board.OnRefresh = session.Refresh

	app.SetInputCapture(board.HandleKey)
	runErr := app.SetRoot(board.Root(), true).Run()

	board.Close()
	session.Stop()
	<-session.Done()
	if runErr != nil {
		log.Fatalln(runErr)
	}
	if err := session.Err(); err != nil {
		log.Println("Polling stopped:", err)
	}
}
