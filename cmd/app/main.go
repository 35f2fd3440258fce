package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/kyosuke-takei/slack-price-watch/internal/app"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: standard search path)")
	daemon := flag.Bool("daemon", false, "keep running and scan on a cron schedule")
	schedule := flag.String("schedule", "0 */4 * * *", "cron schedule for daemon mode")
	profile := flag.String("profile", "", "scan only the given profile key")
	dryRun := flag.Bool("dry-run", false, "scan and diff but send nothing")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	err := bootstrap.Initialize(app.Options{
		ConfigPath:  *configPath,
		OnlyProfile: *profile,
		DryRun:      *dryRun,
	})
	if err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*daemon {
		bootstrap.RunOnce(ctx)
		return
	}

	runDaemon(ctx, bootstrap, *schedule)
}

// runDaemon scans on the cron schedule until the context is cancelled.
// A tick that fires while the previous cycle is still running is skipped;
// overlapping cycles would race on the state file.
func runDaemon(ctx context.Context, bootstrap *app.Bootstrap, schedule string) {
	var running sync.Mutex

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if !running.TryLock() {
			slog.Warn("Previous scan still running, tick skipped")
			return
		}
		defer running.Unlock()
		bootstrap.RunOnce(ctx)
	})
	if err != nil {
		slog.Error("❌ Invalid cron schedule", slog.String("schedule", schedule), slog.Any("error", err))
		os.Exit(1)
	}

	c.Start()
	slog.Info("✅ Daemon started", slog.String("schedule", schedule))

	<-ctx.Done()
	slog.Info("👋 Shutting down gracefully...")

	// Let an in-flight cycle finish before exiting.
	<-c.Stop().Done()
}
