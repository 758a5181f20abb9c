package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/kawalsec/s1relay/internal/adapter/llm"
	"github.com/kawalsec/s1relay/internal/adapter/platform"
	"github.com/kawalsec/s1relay/internal/adapter/repository"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
	"github.com/kawalsec/s1relay/internal/relay"
)

const checkpointFile = ".poll_checkpoint"

func main() {
	cfgPath := flag.String("config", getEnv("S1RELAY_CONFIG", "config.json"), "Path to the config document")
	logDir := flag.String("logs", getEnv("S1RELAY_LOG_DIR", "logs"), "Directory for log files")
	once := flag.Bool("once", false, "Run a single poll cycle and exit")
	flag.Parse()

	_ = godotenv.Load()

	logs, err := logstore.Open(*logDir)
	if err != nil {
		log.Fatalf("❌ Failed to open log store: %v", err)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	relay.InitMetrics()
	llm.InitMetrics()

	var index ports.EventIndex
	if cfg.Database.DSN != "" {
		dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer dbPool.Close()
		index = repository.NewPostgresIndex(dbPool)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *once {
		poll(ctx, *cfgPath, logs, index)
		return
	}

	log.Printf("🚀 Poller started (interval %ds)", cfg.Polling.IntervalSeconds)
	logs.Info("Poller started")

	for {
		// Reload each cycle so dashboard edits take effect without a restart.
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			logs.Error("Failed to reload config: %v", err)
			cfg = config.Default()
		}

		if cfg.Polling.Enabled {
			poll(ctx, *cfgPath, logs, index)
		}

		interval := time.Duration(cfg.Polling.IntervalSeconds) * time.Second
		if interval < 10*time.Second {
			interval = 10 * time.Second
		}

		select {
		case <-ctx.Done():
			logs.Info("Poller stopped")
			log.Println("✅ Poller stopped gracefully")
			return
		case <-time.After(interval):
		}
	}
}

// poll runs one fetch-and-relay cycle. Failures are logged, never
// fatal: the next tick starts from the same checkpoint and retries.
func poll(ctx context.Context, cfgPath string, logs *logstore.Store, index ports.EventIndex) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logs.Error("Failed to load config: %v", err)
		return
	}

	if cfg.SentinelOne.BaseURL == "" || cfg.SentinelOne.APIToken == "" {
		logs.Error("Polling skipped: SentinelOne API is not configured")
		return
	}

	since := loadCheckpoint(cfg.Backup.Location)
	client := platform.NewClient(cfg.SentinelOne.BaseURL, cfg.SentinelOne.APIToken, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	events, err := client.FetchAlerts(fetchCtx, since, cfg.Polling.FetchLimit)
	if err != nil {
		if errors.Is(err, platform.ErrAuthentication) {
			logs.Error("Polling failed: SentinelOne rejected the API token")
		} else {
			logs.Error("Polling failed: %v", err)
		}
		return
	}
	if len(events) == 0 {
		return
	}

	logs.Info("Fetched %d new alert(s) from SentinelOne", len(events))

	rl, err := relay.FromConfig(cfg, logs, index)
	if err != nil {
		logs.Error("Bad sanitizer patterns, custom masking disabled: %v", err)
		safe := *cfg
		safe.Sanitizer.ExtraPatterns = nil
		rl, _ = relay.FromConfig(&safe, logs, index)
	}

	latest := since
	for _, ev := range events {
		rl.ProcessEvent(ctx, ev, "")
		if ev.CreatedAt.After(latest) {
			latest = ev.CreatedAt
		}
	}

	if latest.After(since) {
		if err := saveCheckpoint(cfg.Backup.Location, latest); err != nil {
			logs.Error("Failed to save poll checkpoint: %v", err)
		}
	}
}

// loadCheckpoint reads the high-water mark left by the previous cycle.
// A missing or unreadable file falls back to one hour ago, trading a
// few duplicate notifications for never silently skipping alerts.
func loadCheckpoint(storageDir string) time.Time {
	fallback := time.Now().UTC().Add(-time.Hour)

	data, err := os.ReadFile(filepath.Join(storageDir, checkpointFile))
	if err != nil {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(string(data)))
	if err != nil {
		return fallback
	}
	return ts
}

func saveCheckpoint(storageDir string, ts time.Time) error {
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(storageDir, checkpointFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(ts.UTC().Format(time.RFC3339Nano)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
