package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	scoreboard "live-scoreboard"
	"live-scoreboard/config"
	"live-scoreboard/feeds"
	"live-scoreboard/fetch"
	"live-scoreboard/notify"
	"live-scoreboard/poll"
	"live-scoreboard/store"
	"live-scoreboard/web"
)

func main() {
	logger := scoreboard.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Invalid configuration", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The UI works without Temporal; workflow operations answer in demo mode.
	var temporalClient client.Client
	if err := cfg.RequireTemporal(); err != nil {
		log.Printf("Warning: %v", err)
		log.Printf("The UI will work but workflow operations will be limited")
	} else if temporalClient, err = client.Dial(scoreboard.GetClientOptions(cfg)); err != nil {
		log.Printf("Warning: Unable to create Temporal client: %v", err)
		log.Printf("The UI will work but workflow operations will be limited")
		temporalClient = nil
	} else {
		defer temporalClient.Close()
		log.Printf("Successfully connected to Temporal server")
	}

	var history *store.History
	if cfg.DatabaseDSN != "" {
		history, err = store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
		if err != nil {
			log.Fatalln("Unable to open history database", err)
		}
		defer history.Close()
	}

	var publisher *store.Publisher
	if cfg.RedisAddr != "" {
		publisher, err = store.NewPublisher(ctx, cfg.RedisAddr, 0)
		if err != nil {
			log.Fatalln("Unable to connect to Redis", err)
		}
		defer publisher.Close()
	}

	senders, err := scoreboard.NewSenders(cfg, logger)
	if err != nil {
		log.Fatalln("Unable to configure notifications", err)
	}
	types := notify.ParseTypes(strings.Join(cfg.NotificationTypes, ","))

	sessions := web.NewSessions(web.SessionsConfig{
		Client:          fetch.New(fetch.Config{Timeout: cfg.FetchTimeout, Logger: logger}),
		DefaultInterval: cfg.PollInterval,
		DefaultTimeout:  cfg.FetchTimeout,
		Logger:          logger,
		Views: func(sport, resource string) []poll.View[feeds.Event] {
			views := []poll.View[feeds.Event]{notify.NewView(types, senders, logger)}
			if history != nil {
				views = append(views, store.HistoryView{History: history})
			}
			if publisher != nil {
				views = append(views, publisher)
			}
			return views
		},
	})
	defer sessions.Close()

	if cfg.Watchlist != "" {
		startWatchlist(sessions, cfg.Watchlist, logger)
	}

	handlers := web.NewHandlers(web.Options{
		Temporal:  temporalClient,
		Sessions:  sessions,
		Config:    cfg,
		History:   history,
		Publisher: publisher,
		Logger:    logger,
	})
	router := handlers.Routes()

	staticDir := "web/static"
	if _, err := os.Stat(staticDir); os.IsNotExist(err) {
		staticDir = "../../web/static"
	}
	if _, err := os.Stat(staticDir); err == nil {
		router.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Starting web server on port %s", cfg.Port)
	log.Printf("Open http://localhost:%s/api/sessions in your browser", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalln("Server failed to start:", err)
	}
}

func startWatchlist(sessions *web.Sessions, path string, logger *slog.Logger) {
	entries, err := config.LoadWatchlist(path)
	if err != nil {
		log.Fatalln("Unable to load watchlist", err)
	}
	for _, e := range entries {
		_, err := sessions.Start(web.StartRequest{
			ID:       e.ID,
			Sport:    e.Sport,
			Resource: e.Resource,
			Interval: e.Interval,
			Timeout:  e.Timeout,
		})
		if err != nil {
			logger.Error("Unable to start watchlist session", "id", e.ID, "error", err)
		}
	}
	logger.Info("Watchlist loaded", "sessions", len(entries))
}
