package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/griffin1995/my-private-tutor-online-sub019/internal/alert"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/api"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/archive"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/config"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/ingest"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/logging"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/model"
	"github.com/griffin1995/my-private-tutor-online-sub019/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	// Handle -nginx / --nginx anywhere
	if cmd == "-nginx" || cmd == "--nginx" {
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdNginx()
		return
	}

	switch cmd {
	case "start":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStart()
	case "stop":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStop()
	case "status":
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdStatus()
	case "run":
		// Foreground mode (also used internally by daemon child)
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		cmdRun()
	case "version":
		fmt.Printf("vitalsd %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	exe := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `vitalsd — Web Vitals Ingestion & Alerting Daemon (%s)

Usage:
  %s <command> [flags]

Commands:
  start          Start daemon (background)
  stop           Stop daemon
  status         Show daemon status
  run            Run in foreground
  version        Print version

Flags:
  -nginx              Print sample nginx reverse proxy configuration
  -config PATH        Config file path (default: config.yaml)
  -listen ADDR        Listen address (default: 127.0.0.1:9941)
  -db PATH            SQLite database path
  -base-path P        Base URL path for reverse proxy
  -pid-file P         PID file path
  -log-file P         Log file path
  -max-sessions N     Max in-memory session buckets
  -retention-hours N  Alert history retention
  -ratelimit-backend  memory | redis
  -archive-mode       none | dir | s3

Examples:
  %s start
  %s start -config /etc/vitalsd/config.yaml
  %s stop
  %s status
  %s run
  %s -nginx
`, version, exe, exe, exe, exe, exe, exe, exe)
}

// buildForwardFlags generates flags to forward the loaded config to the child.
func buildForwardFlags(cfg *config.Config) []string {
	var args []string
	args = append(args, "-config", cfg.ConfigPath)
	return args
}

// ---------------------------------------------------------------------------
// -nginx: print sample nginx config
// ---------------------------------------------------------------------------

func cmdNginx() {
	cfg := config.Load()

	bp := cfg.BasePath
	if bp == "/" {
		bp = "/vitals"
		fmt.Println("# base_path is \"/\" — using \"/vitals\" as example.")
		fmt.Println("# Set base_path in config.yaml to match your desired location.")
		fmt.Println()
	}

	// Ensure trailing slash for nginx location
	loc := bp + "/"

	fmt.Printf(`# --------------------------------------------------
# nginx reverse proxy configuration for vitalsd
# --------------------------------------------------
# Add this inside an http { server { ... } } block.

location %s {
    proxy_pass         http://%s/;
    proxy_http_version 1.1;

    # WebSocket support for the live alert stream
    proxy_set_header   Upgrade $http_upgrade;
    proxy_set_header   Connection "upgrade";

    # Forward client info (required for alert rate limiting)
    proxy_set_header   Host              $host;
    proxy_set_header   X-Real-IP         $remote_addr;
    proxy_set_header   X-Forwarded-For   $proxy_add_x_forwarded_for;
    proxy_set_header   X-Forwarded-Proto $scheme;

    # Disable buffering for real-time WebSocket
    proxy_buffering    off;
    proxy_read_timeout 86400s;
}
`, loc, cfg.Listen)

	fmt.Println("# config.yaml should have:")
	fmt.Printf("#   base_path: \"%s\"\n", bp)
}

// ---------------------------------------------------------------------------
// run: foreground server (also used by daemon child)
// ---------------------------------------------------------------------------

func cmdRun() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogPretty, "vitalsd")

	// Open alert history store
	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	// DB-persisted settings override config defaults
	applyDBSettings(db, cfg)

	// In-memory session store
	metrics := ingest.NewStore(cfg.MaxSessions, cfg.SessionTTL)

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	// Optional archive of evicted session buckets
	archiver := buildArchiver(ctx, cfg)
	if archiver != nil {
		archiver.Start()
		metrics.SetEvictHook(func(sessionID string, records []model.MetricRecord) {
			archiver.Enqueue(sessionID, records)
		})
	}

	// Alert rate limiter backend
	limiter := buildLimiter(cfg)
	defer limiter.Close()

	// WebSocket hub
	hub := api.NewHub()
	go hub.Run()

	dispatcher := alert.NewDispatcher(cfg.DispatchTimeout, db, hub)

	// Build HTTP router
	router := api.NewRouter(api.Deps{
		Metrics:    metrics,
		History:    db,
		Limiter:    limiter,
		Dispatcher: dispatcher,
		Hub:        hub,
		StartedAt:  time.Now(),
	}, cfg.BasePath)

	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}

	// Background maintenance
	go runRetentionPurge(ctx, db, cfg.RetentionHours)
	go runSweeps(ctx, metrics, limiter)

	// Start server
	go func() {
		log.Info().Str("version", version).Str("listen", cfg.Listen).
			Str("basePath", cfg.BasePath).Msg("vitalsd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for signal
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv.Shutdown(shutCtx)
	if archiver != nil {
		archiver.Shutdown()
	}

	// Clean up PID file
	os.Remove(cfg.PidFile)
	log.Info().Msg("goodbye")
}

func buildArchiver(ctx context.Context, cfg *config.Config) *archive.Archiver {
	switch cfg.ArchiveMode {
	case "dir":
		dir := cfg.ArchiveDir
		if dir == "" {
			dir = "archive"
		}
		return archive.NewArchiver(archive.NewDirSink(dir), cfg.ArchivePrefix)
	case "s3":
		sink, err := archive.NewS3Sink(ctx, cfg.ArchiveBucket, cfg.ArchiveRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to configure S3 archive")
		}
		return archive.NewArchiver(sink, cfg.ArchivePrefix)
	default:
		return nil
	}
}

func buildLimiter(cfg *config.Config) alert.Limiter {
	if cfg.RateLimitBackend == "redis" {
		l, err := alert.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("failed to connect redis rate limiter")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("[ratelimit] redis backend")
		return l
	}
	return alert.NewMemoryLimiter()
}

// ---------------------------------------------------------------------------
// PID file helpers
// ---------------------------------------------------------------------------

func writePidFile(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func readPidFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID in %s", path)
	}
	return pid, nil
}

// ---------------------------------------------------------------------------
// Background maintenance
// ---------------------------------------------------------------------------

func runRetentionPurge(ctx context.Context, db *store.Store, hours int) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.PurgeOlderThan(hours)
			if err != nil {
				log.Error().Err(err).Msg("[purge] error")
			} else if n > 0 {
				log.Info().Int64("removed", n).Msg("[purge] removed old alerts")
			}
		}
	}
}

// runSweeps expires idle session buckets and stale rate-limit counters.
func runSweeps(ctx context.Context, metrics *ingest.Store, limiter alert.Limiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := metrics.Sweep(); n > 0 {
				log.Info().Int("sessions", n).Msg("[sweep] expired session buckets")
			}
			if ml, ok := limiter.(*alert.MemoryLimiter); ok {
				ml.Sweep()
			}
		}
	}
}

func applyDBSettings(db *store.Store, cfg *config.Config) {
	if v, err := db.GetSetting("retention_hours"); err == nil && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionHours = n
			log.Info().Int("hours", n).Msg("[settings] retention_hours from DB")
		}
	}
}
