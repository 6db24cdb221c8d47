// Package config reads process settings from the environment and the
// optional YAML watchlist of resources to poll at boot.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the binaries read from the environment.
type Config struct {
	TemporalHost      string
	TemporalNamespace string
	TemporalAPIKey    string
	TaskQueue         string

	Port string

	NotificationTypes    []string
	NotificationChannels []string
	SlackWebhookURL      string
	TelegramToken        string
	TelegramChatID       string

	DatabaseDriver string
	DatabaseDSN    string
	RedisAddr      string

	Watchlist    string
	PollInterval time.Duration
	FetchTimeout time.Duration
}

const (
	DefaultTaskQueue    = "live-scoreboard-task-queue"
	DefaultPort         = "8080"
	DefaultPollInterval = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
)

// Load reads .env, when present, and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Config{
		TemporalHost:         getenv("TEMPORAL_HOST"),
		TemporalNamespace:    getenv("TEMPORAL_NAMESPACE"),
		TemporalAPIKey:       getenv("TEMPORAL_API_KEY"),
		TaskQueue:            or(getenv("TASK_QUEUE"), DefaultTaskQueue),
		Port:                 or(getenv("PORT"), DefaultPort),
		NotificationTypes:    splitList(getenv("NOTIFICATION_TYPES")),
		NotificationChannels: splitList(or(getenv("NOTIFICATION_CHANNELS"), "logger")),
		SlackWebhookURL:      getenv("SLACK_WEBHOOK_URL"),
		TelegramToken:        getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:       getenv("TELEGRAM_CHAT_ID"),
		DatabaseDriver:       getenv("DATABASE_DRIVER"),
		DatabaseDSN:          getenv("DATABASE_DSN"),
		RedisAddr:            getenv("REDIS_ADDR"),
		Watchlist:            getenv("WATCHLIST"),
	}

	var err error
	if c.PollInterval, err = duration(getenv, "POLL_INTERVAL", DefaultPollInterval); err != nil {
		return Config{}, err
	}
	if c.FetchTimeout, err = duration(getenv, "FETCH_TIMEOUT", DefaultFetchTimeout); err != nil {
		return Config{}, err
	}
	if c.DatabaseDSN != "" && c.DatabaseDriver == "" {
		c.DatabaseDriver = "sqlite"
	}
	return c, nil
}

// IsLocalTemporal reports whether the Temporal frontend is a local dev
// server, which is reached without TLS or an API key.
func (c Config) IsLocalTemporal() bool {
	return c.TemporalHost == "localhost:7233" || c.TemporalHost == "host.docker.internal:7233"
}

// RequireTemporal checks the settings a worker or starter cannot run without.
func (c Config) RequireTemporal() error {
	if c.TemporalHost == "" {
		return fmt.Errorf("TEMPORAL_HOST environment variable is not set")
	}
	if c.TemporalNamespace == "" {
		return fmt.Errorf("TEMPORAL_NAMESPACE environment variable is not set")
	}
	if !c.IsLocalTemporal() && c.TemporalAPIKey == "" {
		return fmt.Errorf("TEMPORAL_API_KEY environment variable is not set")
	}
	return nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
