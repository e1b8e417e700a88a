package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botconsole/botconsole/internal/api"
	"github.com/botconsole/botconsole/internal/backend"
	"github.com/botconsole/botconsole/internal/cache"
	"github.com/botconsole/botconsole/internal/config"
	"github.com/botconsole/botconsole/internal/loader"
	"github.com/botconsole/botconsole/internal/metrics"
	"github.com/botconsole/botconsole/internal/scheduler"
	"github.com/botconsole/botconsole/internal/stats"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "configs/botconsole.yaml", "path to configuration file")
	flag.Parse()

	slog.Info("botconsole starting...")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "path", *configPath, "backend", cfg.Backend.BaseURL)

	// Initialize components
	m := metrics.New()
	store := cache.New(cfg.Cache.TTL)
	client := backend.New(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout)
	ld := loader.New(store, client, m, cfg.Backend.SlowThreshold)
	poller := stats.New(client)

	// Scheduler: stats feeds plus the cache sweep. The bot-info feed rides
	// the realtime task as a derived action on every 3rd tick.
	sched := scheduler.New()
	sched.SetOnTick(m.TaskTick)

	sched.Register(&scheduler.Task{
		Name:     stats.FeedDashboard,
		Interval: cfg.Poll.StatsInterval,
		Action: func(ctx context.Context) {
			poller.Refresh(ctx, stats.FeedDashboard)
		},
		Disabled: !cfg.Poll.StatsOn(),
	})
	sched.Register(&scheduler.Task{
		Name:     stats.FeedRealtime,
		Interval: cfg.Poll.RealtimeInterval,
		Action: func(ctx context.Context) {
			poller.Refresh(ctx, stats.FeedRealtime)
		},
		DerivedEvery: cfg.Poll.BotInfoEvery,
		DerivedDelay: cfg.Poll.BotInfoDelay,
		Derived: func(ctx context.Context) {
			poller.Refresh(ctx, stats.FeedBotInfo)
		},
		Disabled: !cfg.Poll.RealtimeOn(),
	})
	sched.Register(&scheduler.Task{
		Name:     "sweep",
		Interval: cfg.Cache.SweepInterval,
		Action: func(ctx context.Context) {
			ld.SweepCache(time.Now())
		},
	})

	sched.Start()

	// Start console API
	apiServer := api.NewServer(ld, client, poller, sched, m, cfg.Listen)
	if err := apiServer.Start(cfg.Listen.APIPort); err != nil {
		slog.Error("failed to start API server", "err", err)
		os.Exit(1)
	}

	// Set up config hot-reload
	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		slog.Info("configuration changed; poll and cache settings apply on restart",
			"backend", newCfg.Backend.BaseURL)
	})
	if err != nil {
		slog.Warn("config hot-reload not available", "err", err)
	}

	slog.Info("botconsole ready",
		"api_port", cfg.Listen.APIPort,
		"cache_ttl", cfg.Cache.TTL,
		"stats_interval", cfg.Poll.StatsInterval)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down...", "signal", sig)

	// Graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		if configWatcher != nil {
			configWatcher.Stop()
		}
		apiServer.Stop()
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("botconsole stopped")
	case <-time.After(shutdownTimeout):
		slog.Error("shutdown timed out, forcing exit", "timeout", shutdownTimeout)
		os.Exit(1)
	}
}
