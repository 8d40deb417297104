// Package config loads server configuration from the environment, an
// optional .env file and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	// Server
	Port            int
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	// Database
	DBPath string

	// Logging
	Env      string
	LogLevel string

	// Scheduler
	TickSchedule    string
	TickParallelism int
	TickTimeout     time.Duration
}

// Load reads .env (if present), then the environment, then args. args
// excludes the program name.
func Load(args []string) (*Config, error) {
	// A missing .env file is normal outside development.
	envErr := godotenv.Load()

	cfg := &Config{
		Port:            getEnvInt("PORT", 8080),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		DBPath:          getEnv("DB_PATH", "actus.db"),
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TickSchedule:    getEnv("TICK_SCHEDULE", "@every 1m"),
		TickParallelism: getEnvInt("TICK_PARALLELISM", 8),
		TickTimeout:     getEnvDuration("TICK_TIMEOUT", 5*time.Minute),
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&cfg.Env, "env", cfg.Env, "environment: development or production")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.TickSchedule, "tick", cfg.TickSchedule, `cron schedule for scheduler ticks ("" disables)`)
	fs.IntVar(&cfg.TickParallelism, "parallelism", cfg.TickParallelism, "contracts processed concurrently per tick")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		return cfg, fmt.Errorf("reading .env: %w", envErr)
	}
	return cfg, nil
}

// Validate checks ranges and the tick schedule syntax.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if c.TickParallelism < 1 {
		errs = append(errs, fmt.Errorf("tick parallelism must be positive, got %d", c.TickParallelism))
	}
	if c.TickSchedule != "" {
		if _, err := cron.ParseStandard(c.TickSchedule); err != nil {
			errs = append(errs, fmt.Errorf("tick schedule %q: %w", c.TickSchedule, err))
		}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the server runs with production logging.
func (c *Config) IsProduction() bool { return c.Env == "production" }

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
