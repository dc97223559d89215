// Command alertengine runs the alerting engine as a standalone process:
// it loads configuration, connects to NATS, bootstraps or loads
// Definitions, and serves the Data Source ingest path, the admin
// live-feed, and Prometheus metrics until signaled to stop. Grounded on
// the teacher's cmd/semstreams/main.go decomposition.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/alertengine/config"
	"github.com/c360/alertengine/engine"
)

const (
	Version = "0.1.0"
	appName = "alertengine"

	shutdownTimeout = 15 * time.Second
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("alert engine failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(flag.NewFlagSet(appName, flag.ExitOnError), os.Args[1:])
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting alert engine", "version", Version, "keyspace", cfg.Keyspace, "nats_url", cfg.NATSURL)

	e, err := engine.New(cfg, engine.Dependencies{}, logger)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()
	if err := e.Start(startCtx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	return runWithSignalHandling(e)
}

func runWithSignalHandling(e *engine.Engine) error {
	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-signalCtx.Done()
	slog.Info("received shutdown signal")

	if err := e.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("alert engine shutdown complete")
	return nil
}
