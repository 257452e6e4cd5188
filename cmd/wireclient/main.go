// Command wireclient is an example entry point for the wireclient
// library. It loads configuration, validates it, wires a Client together
// with its optional metrics sink, diagnostics server, and alert notifiers,
// and keeps the connection alive until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/wireclient/wireclient"
	"github.com/wireclient/wireclient/config"
	"github.com/wireclient/wireclient/internal/alert"
	"github.com/wireclient/wireclient/internal/diag"
	"github.com/wireclient/wireclient/internal/metrics"
	"github.com/wireclient/wireclient/internal/reachability"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("wireclient agent starting",
		slog.String("address", cfg.Connection.Address),
		slog.String("config", *configPath),
	)

	client, registry := buildClient(cfg, logger)
	defer client.Disable()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.Connect(ctx)
	})

	if cfg.Diag.Enabled {
		startDiagServer(ctx, g, cfg, client, registry, logger)
	}

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Disconnect(shutCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("wireclient agent exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}

	logger.Info("wireclient agent stopped")
}

// buildClient wires a Client from the loaded configuration. The metrics sink
// and alert notifiers are optional and degrade to their no-op defaults when
// unconfigured; the reachability gate is always a DialGate probing
// cfg.Reachability.ProbeAddr. It also returns the underlying
// Prometheus registry (nil when metrics are disabled) so the diagnostics
// server can expose /metrics against the same registry the Client records
// into.
func buildClient(cfg *config.Config, logger *slog.Logger) (*wireclient.Client, *prometheus.Registry) {
	opts := []wireclient.Option{
		wireclient.WithLogger(logger),
		wireclient.WithCommandTimeout(cfg.Connection.CommandTimeout.Duration),
		wireclient.WithMaxServerPingDelay(cfg.Connection.MaxServerPingDelay.Duration),
		wireclient.WithReachabilityInterval(cfg.Reachability.Interval.Duration),
		wireclient.WithReachabilityGate(reachability.NewDialGate(cfg.Reachability.ProbeAddr)),
	}

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		sink := metrics.NewPrometheusSink()
		registry = sink.Registry()
		opts = append(opts, wireclient.WithMetrics(sink))
	}

	var senders []alert.Sender
	if cfg.Alert.DiscordWebhookURL != "" {
		senders = append(senders, alert.NewDiscordNotifier(cfg.Alert.DiscordWebhookURL))
	}
	if cfg.Alert.TelegramToken != "" {
		senders = append(senders, alert.NewTelegramNotifier(cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID))
	}
	if len(senders) > 0 {
		opts = append(opts, wireclient.WithAlertNotifier(alert.NewNotifier(logger, senders...)))
	}

	return wireclient.New(cfg.Connection.Address, cfg.Connection.AccessToken, opts...), registry
}

// startDiagServer adds the diagnostics HTTP server goroutine to the given
// errgroup, shutting it down gracefully when the context is cancelled.
func startDiagServer(ctx context.Context, g *errgroup.Group, cfg *config.Config, client *wireclient.Client, registry *prometheus.Registry, logger *slog.Logger) {
	srv := diag.NewServer(diag.Config{
		Addr:           cfg.Diag.Addr,
		Registry:       registry,
		AllowedOrigins: cfg.Diag.AllowedOrigins,
	}, client, logger)

	g.Go(func() error {
		logger.InfoContext(ctx, "diagnostics server listening", slog.String("addr", cfg.Diag.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("diagnostics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.InfoContext(ctx, "diagnostics server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
