package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/STRATINT/eventfeed/internal/cloudsql"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Pipeline PipelineConfig
	Dedup    DedupConfig
	OpenAI   OpenAIConfig
	RabbitMQ RabbitMQConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig describes the optional Postgres store. An empty URL selects
// the in-memory candidate store.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrationsDir  string
}

// PipelineConfig controls orchestrated collection runs.
type PipelineConfig struct {
	Strategy     string
	SourcesFile  string
	TierCooldown time.Duration
	RunInterval  time.Duration
	OriginRate   float64
	OriginBurst  int
}

// DedupConfig tunes the deduplication engine.
type DedupConfig struct {
	Threshold float64
	Strategy  string
}

// OpenAIConfig enables the optional borderline-candidate classifier.
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// RabbitMQConfig enables run notifications when URL is set.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections = 20
	defaultMigrationsDir  = "./migrations"

	defaultStrategy     = "comprehensive"
	defaultSourcesFile  = "./configs/sources.yaml"
	defaultTierCooldown = 2 * time.Second
	defaultOriginRate   = 1.0
	defaultOriginBurst  = 1

	defaultDedupThreshold = 0.7
	defaultDedupStrategy  = "seed"

	defaultOpenAIModel = "gpt-4o-mini"
	defaultExchange    = "eventfeed.events"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			MaxConnections: defaultMaxConnections,
			MigrationsDir:  getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
		},
		Pipeline: PipelineConfig{
			Strategy:     defaultStrategy,
			SourcesFile:  getEnv("SOURCES_FILE", defaultSourcesFile),
			TierCooldown: defaultTierCooldown,
			OriginRate:   defaultOriginRate,
			OriginBurst:  defaultOriginBurst,
		},
		Dedup: DedupConfig{
			Threshold: defaultDedupThreshold,
			Strategy:  defaultDedupStrategy,
		},
		OpenAI: OpenAIConfig{
			APIKey: os.Getenv("OPENAI_API_KEY"),
			Model:  getEnv("OPENAI_MODEL", defaultOpenAIModel),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnv("RABBITMQ_EXCHANGE", defaultExchange),
		},
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout},
		{"TIER_COOLDOWN_SECONDS", &cfg.Pipeline.TierCooldown},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	if v := os.Getenv("RUN_INTERVAL_MINUTES"); v != "" {
		minutes, err := strconv.Atoi(v)
		if err != nil || minutes < 0 {
			return Config{}, fmt.Errorf("invalid RUN_INTERVAL_MINUTES: must be a non-negative integer")
		}
		cfg.Pipeline.RunInterval = time.Duration(minutes) * time.Minute
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("ORCHESTRATION_STRATEGY"); v != "" {
		switch v {
		case "comprehensive", "priority-only", "priority_only", "fast":
			cfg.Pipeline.Strategy = v
		default:
			return Config{}, fmt.Errorf("invalid ORCHESTRATION_STRATEGY: must be one of comprehensive, priority-only, fast")
		}
	}

	if v := os.Getenv("ORIGIN_RATE_PER_SECOND"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil || rate <= 0 {
			return Config{}, fmt.Errorf("invalid ORIGIN_RATE_PER_SECOND: must be a positive number")
		}
		cfg.Pipeline.OriginRate = rate
	}

	if v := os.Getenv("ORIGIN_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst < 1 {
			return Config{}, fmt.Errorf("invalid ORIGIN_BURST: must be a positive integer")
		}
		cfg.Pipeline.OriginBurst = burst
	}

	if v := os.Getenv("DEDUP_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return Config{}, fmt.Errorf("invalid DEDUP_THRESHOLD: must be in (0, 1]")
		}
		cfg.Dedup.Threshold = threshold
	}

	if v := os.Getenv("DEDUP_STRATEGY"); v != "" {
		switch v {
		case "seed", "transitive":
			cfg.Dedup.Strategy = v
		default:
			return Config{}, fmt.Errorf("invalid DEDUP_STRATEGY: must be 'seed' or 'transitive'")
		}
	}

	if v := os.Getenv("DB_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid DB_MAX_CONNECTIONS: must be a positive integer")
		}
		cfg.Database.MaxConnections = n
	}

	dbURL, err := cloudsql.BuildDatabaseURL(os.Getenv)
	switch {
	case err == nil:
		cfg.Database.URL = dbURL
	case cloudsql.IsNotConfigured(err):
		// in-memory store
	default:
		return Config{}, fmt.Errorf("invalid database settings: %w", err)
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
