// Command rentalctl polls rental calendar subscriptions, derives guest
// and door-code data from them, reconciles lock slots, and serves the
// results over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tykeal/homeassistant-rental-control/internal/config"
	"github.com/tykeal/homeassistant-rental-control/internal/coordinator"
	"github.com/tykeal/homeassistant-rental-control/internal/ics"
	"github.com/tykeal/homeassistant-rental-control/internal/lockslot"
	appLog "github.com/tykeal/homeassistant-rental-control/internal/log"
	"github.com/tykeal/homeassistant-rental-control/internal/metrics"
	"github.com/tykeal/homeassistant-rental-control/internal/web"
)

func main() {
	var (
		configPath = flag.String("config", defaultConfigPath(), "path to config file")
		once       = flag.Bool("once", false, "run a single refresh of every subscription and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLog.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer appLog.Sync()

	if len(cfg.Subscriptions) == 0 {
		appLog.Error("no subscriptions configured", fmt.Errorf("config %s has an empty subscriptions list", *configPath))
		os.Exit(1)
	}

	met := metrics.New()
	fetcher := ics.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second)

	coords := make([]*coordinator.Coordinator, 0, len(cfg.Subscriptions))
	for _, sub := range cfg.Subscriptions {
		var mgr lockslot.Manager
		if sub.Lock != nil {
			mgr = lockslot.NewMemoryManager()
		}
		c, err := coordinator.New(sub, fetcher, mgr, met)
		if err != nil {
			appLog.Error("failed to build coordinator", err, "subscription", sub.Name)
			os.Exit(1)
		}
		coords = append(coords, c)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// First refresh runs eagerly so the API never starts empty, and so
	// obviously broken feed URLs fail fast.
	for _, c := range coords {
		if err := c.Refresh(ctx); err != nil {
			appLog.Error("initial refresh failed", err, "subscription", c.Name())
			os.Exit(1)
		}
	}

	if *once {
		appLog.Info("single refresh complete, exiting")
		return
	}

	scheduler := cron.New()
	for _, c := range coords {
		c := c
		if _, err := scheduler.AddFunc(c.CronSpec(), func() {
			if err := c.Refresh(ctx); err != nil {
				appLog.Error("scheduled refresh failed", err, "subscription", c.Name())
			}
		}); err != nil {
			appLog.Error("failed to schedule refresh", err, "subscription", c.Name())
			os.Exit(1)
		}
		appLog.Info("scheduled subscription", "subscription", c.Name(), "cadence", c.CronSpec())
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           web.NewServer(cfg, coords, met).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("HTTP server listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		appLog.Info("shutdown signal received")
	case err := <-errCh:
		appLog.Error("HTTP server failed", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	appLog.Info("shutdown complete")
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/rentalctl/config.yaml"
	}
	return "config.yaml"
}
