package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/photocache/internal/app"
	"github.com/timmy/photocache/internal/config"
	"github.com/timmy/photocache/internal/logger"
	"github.com/timmy/photocache/internal/service"
)

// cliLogConfig keeps console logs on stderr so stdout stays parseable JSON.
// LOG_FILE rotation still applies outside the local environment.
func cliLogConfig() *logger.EnvConfig {
	envCfg := logger.LoadFromEnv()
	envCfg.ServiceName = "photocache-cli"
	envCfg.Console = os.Stderr
	return envCfg
}

func main() {
	appLogger := logger.NewFromEnv(cliLogConfig())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	command := flag.String("cmd", "read", "Command to run: read, refresh, stats, history")
	configPath := flag.String("config", "", "Path to config file")
	limit := flag.Int("limit", 0, "Maximum number of photos (or runs) to print; 0 prints all")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	components, err := app.New(ctx, cfg, appLogger, nil)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize photo cache")
	}
	defer components.Close()

	if err := run(ctx, components, *command, *limit, os.Stdout); err != nil {
		appLogger.WithError(err).WithField("cmd", *command).Error("Command failed")
		components.Close()
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, limit int, out io.Writer) error {
	switch command {
	case "read":
		photos := a.Cache.Read(ctx)
		return printJSON(out, truncate(photos, limit))

	case "refresh":
		photos, err := a.Cache.Refresh(ctx)
		if err != nil {
			if errors.Is(err, service.ErrNoItemsAvailable) {
				printJSON(out, map[string]string{"error": err.Error()})
			}
			return err
		}
		return printJSON(out, truncate(photos, limit))

	case "stats":
		return printJSON(out, a.Cache.Stats(ctx))

	case "history":
		if a.Runs == nil {
			return errors.New("refresh history is disabled (history.enabled=false)")
		}
		runs, err := a.Runs.ListRecent(ctx, limit)
		if err != nil {
			return fmt.Errorf("failed to list refresh runs: %w", err)
		}
		return printJSON(out, runs)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
