// Command versiondb_server hosts the transaction bookkeeping core: it builds
// the VersionDb, drives its partitions with a Flusher and exposes metrics
// until it receives SIGINT or SIGTERM.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sushant-115/versiondb/config"
	"github.com/sushant-115/versiondb/core/versiondb"
	"github.com/sushant-115/versiondb/pkg/logger"
	"github.com/sushant-115/versiondb/pkg/telemetry"
	"go.uber.org/zap"
)

var configPath = flag.String("config", "", "Path to the YAML configuration file (defaults are used if empty)")

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("CRITICAL: Failed to load configuration: %v", err)
		}
	}

	zlogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("CRITICAL: Can't initialize zap logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()
	zap.ReplaceGlobals(zlogger)

	tel, err := telemetry.New(cfg.Telemetry, zlogger)
	if err != nil {
		zlogger.Fatal("CRITICAL: Failed to initialize telemetry", zap.Error(err))
	}

	db, err := versiondb.New(cfg.VersionDb, zlogger, tel.Meter)
	if err != nil {
		zlogger.Fatal("CRITICAL: Failed to initialize VersionDb", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flusher := versiondb.NewFlusher(db, cfg.Flusher, zlogger, tel.Tracer)
	if err := flusher.Start(ctx); err != nil {
		zlogger.Fatal("CRITICAL: Failed to start flusher", zap.Error(err))
	}
	zlogger.Info("VersionDb server started",
		zap.Int("partition_count", db.PartitionCount()),
		zap.Float64("visits_per_second", cfg.Flusher.VisitsPerSecond))

	<-ctx.Done()
	zlogger.Info("Received shutdown signal, stopping...")

	flusher.Stop()
	if err := tel.Shutdown(context.Background()); err != nil {
		zlogger.Error("Telemetry shutdown failed", zap.Error(err))
	}
	zlogger.Info("VersionDb server stopped.")
}
