package config

import (
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	DBPath   string `yaml:"database"`
	BasePath string `yaml:"base_path"`
	PidFile  string `yaml:"pid_file"`
	LogFile  string `yaml:"log_file"`

	// Session buffer sizing.
	MaxSessions    int           `yaml:"max_sessions"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	RetentionHours int           `yaml:"retention_hours"`

	// Rate limiting backend: "memory" or "redis".
	RateLimitBackend string `yaml:"ratelimit_backend"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisPassword    string `yaml:"redis_password"`
	RedisDB          int    `yaml:"redis_db"`

	// Session archive on eviction: "none", "dir" or "s3".
	ArchiveMode   string `yaml:"archive_mode"`
	ArchiveDir    string `yaml:"archive_dir"`
	ArchiveBucket string `yaml:"archive_bucket"`
	ArchivePrefix string `yaml:"archive_prefix"`
	ArchiveRegion string `yaml:"archive_region"`

	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	// Parsed from command line (not YAML)
	ConfigPath string `yaml:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:9941",
		DBPath:           "vitalsd.db",
		BasePath:         "/",
		PidFile:          "vitalsd.pid",
		LogFile:          "vitalsd.log",
		MaxSessions:      10000,
		SessionTTL:       24 * time.Hour,
		RetentionHours:   168,
		RateLimitBackend: "memory",
		RedisAddr:        "127.0.0.1:6379",
		ArchiveMode:      "none",
		ArchivePrefix:    "web-vitals",
		ArchiveRegion:    "eu-west-2",
		DispatchTimeout:  10 * time.Second,
		LogLevel:         "info",
		ConfigPath:       "config.yaml",
	}
}

// Load reads configuration with priority: defaults < config.yaml < env vars < flags.
// It expects os.Args to already have the subcommand stripped (if any).
func Load() *Config {
	cfg := DefaultConfig()

	// 1) Pre-scan for -config flag before parsing (so we know which file to read)
	configPath := configPathFromArgs(os.Args[1:], cfg.ConfigPath)

	// 2) Load YAML config file
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			log.Printf("[config] warning: failed to parse %s: %v", configPath, err)
		} else {
			log.Printf("[config] loaded %s", configPath)
		}
	}
	cfg.ConfigPath = configPath

	// 3) Environment variables override YAML
	if v := os.Getenv("VITALSD_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("VITALSD_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VITALSD_BASE_PATH"); v != "" {
		cfg.BasePath = v
	}
	if v := os.Getenv("VITALSD_RATELIMIT_BACKEND"); v != "" {
		cfg.RateLimitBackend = v
	}
	if v := os.Getenv("VITALSD_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("VITALSD_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("VITALSD_ARCHIVE_MODE"); v != "" {
		cfg.ArchiveMode = v
	}
	if v := os.Getenv("VITALSD_ARCHIVE_BUCKET"); v != "" {
		cfg.ArchiveBucket = v
	}
	if v := os.Getenv("VITALSD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VITALSD_RETENTION_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionHours = n
		}
	}

	// 4) Flags override everything
	flag.StringVar(&cfg.ConfigPath, "config", cfg.ConfigPath, "Path to config.yaml")
	flag.StringVar(&cfg.Listen, "listen", cfg.Listen, "HTTP listen address (host:port)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.StringVar(&cfg.BasePath, "base-path", cfg.BasePath, "Base URL path for reverse proxy")
	flag.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "PID file path")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Log file path")
	flag.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Max in-memory session buckets")
	flag.IntVar(&cfg.RetentionHours, "retention-hours", cfg.RetentionHours, "Alert history retention in hours")
	flag.StringVar(&cfg.RateLimitBackend, "ratelimit-backend", cfg.RateLimitBackend, "Alert rate limit backend (memory|redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the rate limit backend")
	flag.StringVar(&cfg.ArchiveMode, "archive-mode", cfg.ArchiveMode, "Evicted session archive (none|dir|s3)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flag.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "Human-readable console log output")
	flag.Parse()

	// Normalize base_path
	cfg.BasePath = normalizeBasePath(cfg.BasePath)

	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}

	return cfg
}

// configPathFromArgs scans the command line for the -config flag
// (space- or =-separated, single or double dash). The file must be
// known before flag.Parse runs, so this is a manual pass.
func configPathFromArgs(args []string, fallback string) string {
	path := fallback
	for i, arg := range args {
		if arg == "-config" || arg == "--config" {
			if i+1 < len(args) {
				path = args[i+1]
			}
		} else if strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config=") {
			path = strings.SplitN(arg, "=", 2)[1]
		}
	}
	return path
}

// normalizeBasePath ensures the base path starts with "/" and has no trailing "/".
// Returns "/" for empty or root paths.
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimRight(p, "/")
	return p
}
