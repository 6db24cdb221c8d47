package scoreboard

import (
	"context"
	"crypto/tls"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"live-scoreboard/config"
)

// NewLogger installs a text slog logger on stdout as the default and
// returns it.
func NewLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// GetClientOptions builds Temporal client options from cfg. Local dev
// servers are reached in plain text, anything else with TLS and an API key.
func GetClientOptions(cfg config.Config) client.Options {
	clientOptions := client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	}

	namespace := cfg.TemporalNamespace
	clientOptions.ConnectionOptions = client.ConnectionOptions{
		TLS: &tls.Config{},
		DialOptions: []grpc.DialOption{
			grpc.WithUnaryInterceptor(
				func(ctx context.Context, method string, req any, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
					return invoker(
						metadata.AppendToOutgoingContext(ctx, "temporal-namespace", namespace),
						method,
						req,
						reply,
						cc,
						opts...,
					)
				},
			),
		},
	}

	if cfg.IsLocalTemporal() || cfg.TemporalAPIKey == "" {
		clientOptions.ConnectionOptions.TLS = nil
	} else {
		clientOptions.Credentials = client.NewAPIKeyStaticCredentials(cfg.TemporalAPIKey)
	}
	return clientOptions
}
