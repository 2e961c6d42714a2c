// Command sensorlogd serves sensor log queries over HTTP.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sensorlog-io/sensorlog"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	dir := flag.String("dir", "", "log directory (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := sensorlog.LoadConfig(*configPath)
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if *dir != "" {
		cfg.LogDir = *dir
	}

	catalog, err := sensorlog.DiscoverSensors(cfg.LogDir, cfg.BlockedSensors)
	if err != nil {
		logger.Error("sensor discovery failed", "dir", cfg.LogDir, "error", err)
		os.Exit(1)
	}
	logger.Info("catalog built", "dir", cfg.LogDir, "sensors", len(catalog))

	engine := sensorlog.NewEngine(cfg.LogDir, catalog, cfg.Query, logger)
	hub := sensorlog.NewStreamHub(engine, cfg.Stream)

	srv, err := sensorlog.StartHTTPServer(engine, hub, cfg, logger)
	if err != nil {
		logger.Error("http server failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Archive != nil && cfg.Archive.Enabled {
		archiver, err := sensorlog.NewArchiver(*cfg.Archive, cfg.LogDir, catalog, logger)
		if err != nil {
			logger.Error("archiver setup failed", "error", err)
			os.Exit(1)
		}
		go archiver.Run(ctx)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	if err := srv.Close(); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
