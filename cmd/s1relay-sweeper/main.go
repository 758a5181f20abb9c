package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kawalsec/s1relay/internal/adapter/archive"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/logstore"
)

func main() {
	cfgPath := flag.String("config", getEnv("S1RELAY_CONFIG", "config.json"), "Path to the config document")
	logDir := flag.String("logs", getEnv("S1RELAY_LOG_DIR", "logs"), "Directory for log files")
	interval := flag.Duration("interval", 24*time.Hour, "Time between retention sweeps")
	once := flag.Bool("once", false, "Run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()

	logs, err := logstore.Open(*logDir)
	if err != nil {
		log.Fatalf("❌ Failed to open log store: %v", err)
	}

	if *once {
		sweep(*cfgPath, logs)
		return
	}

	log.Printf("🚀 Retention sweeper started (interval %s)", *interval)
	logs.Info("Retention sweeper started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Sweep immediately on startup, then on the interval.
	sweep(*cfgPath, logs)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.Info("Retention sweeper stopped")
			log.Println("✅ Sweeper stopped gracefully")
			return
		case <-ticker.C:
			sweep(*cfgPath, logs)
		}
	}
}

func sweep(cfgPath string, logs *logstore.Store) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logs.Error("Failed to load config: %v", err)
		return
	}

	if !cfg.Backup.Enabled {
		logs.Info("Retention sweep skipped: backups disabled")
		return
	}
	if cfg.Backup.RetentionDays <= 0 {
		logs.Info("Retention sweep skipped: retention is unlimited")
		return
	}

	store := archive.NewStore(cfg.Backup.Location, cfg.Backup.RetentionDays)
	removed, err := store.Prune(time.Now())
	if err != nil {
		logs.Error("Retention sweep failed: %v", err)
		return
	}

	if len(removed) == 0 {
		logs.Info("Retention sweep: nothing to remove")
		return
	}
	logs.Success("Retention sweep removed %d file(s) older than %d days", len(removed), cfg.Backup.RetentionDays)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
