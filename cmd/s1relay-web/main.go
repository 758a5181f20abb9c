package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kawalsec/s1relay/internal/adapter/archive"
	"github.com/kawalsec/s1relay/internal/adapter/handler"
	"github.com/kawalsec/s1relay/internal/adapter/llm"
	"github.com/kawalsec/s1relay/internal/adapter/notifier"
	"github.com/kawalsec/s1relay/internal/adapter/platform"
	"github.com/kawalsec/s1relay/internal/adapter/repository"
	"github.com/kawalsec/s1relay/internal/config"
	"github.com/kawalsec/s1relay/internal/core/ports"
	"github.com/kawalsec/s1relay/internal/logstore"
	"github.com/kawalsec/s1relay/internal/relay"
)

func main() {
	cfgPath := flag.String("config", getEnv("S1RELAY_CONFIG", "config.json"), "Path to the config document")
	logDir := flag.String("logs", getEnv("S1RELAY_LOG_DIR", "logs"), "Directory for log files")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
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
	log.Println("✅ Prometheus metrics initialized")

	// Database index is optional. The pool outlives config reloads, so
	// changing database.dsn needs a process restart.
	var index ports.EventIndex
	var dbPool *pgxpool.Pool
	if cfg.Database.DSN != "" {
		dbPool, err = pgxpool.New(context.Background(), cfg.Database.DSN)
		if err != nil {
			log.Fatalf("❌ Failed to connect to database: %v", err)
		}
		defer dbPool.Close()
		index = repository.NewPostgresIndex(dbPool)
		log.Println("✅ Event index enabled")
	} else {
		log.Println("⚠️  Event index disabled (no database.dsn)")
	}

	factories := handler.Factories{
		Relay: func(cfg *config.Config) *relay.Relay {
			rl, err := relay.FromConfig(cfg, logs, index)
			if err != nil {
				logs.Error("Bad sanitizer patterns, custom masking disabled: %v", err)
				safe := *cfg
				safe.Sanitizer.ExtraPatterns = nil
				rl, _ = relay.FromConfig(&safe, logs, index)
			}
			return rl
		},
		Platform: func(cfg *config.Config) handler.PlatformClient {
			return platform.NewClient(cfg.SentinelOne.BaseURL, cfg.SentinelOne.APIToken, nil)
		},
		Bridge: func(cfg *config.Config) handler.GatewayBridge {
			return notifier.NewBridge(cfg.Channels.WhatsApp.GatewayURL)
		},
		Archive: func(cfg *config.Config) ports.EventArchive {
			return archive.NewStore(cfg.Backup.Location, cfg.Backup.RetentionDays)
		},
		Index: func(cfg *config.Config) ports.EventIndex {
			return index
		},
	}

	restHandler := handler.NewRestHandler(*cfgPath, logs, factories)

	router := mux.NewRouter()
	restHandler.Register(router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(loggingMiddleware)
	router.Use(restHandler.AuthMiddleware)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Dashboard listening on %s", addr)
		logs.Info("Web server started on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	logs.Info("Web server stopped")
	log.Println("✅ Server stopped gracefully")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("→ %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
		log.Printf("← %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
