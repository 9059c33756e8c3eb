package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Events        EventsConfig        `yaml:"events"`
	Recalculation RecalculationConfig `yaml:"recalculation"`
	Audit         AuditConfig         `yaml:"audit"`
	Narrative     NarrativeConfig     `yaml:"narrative"`
	Archive       ArchiveConfig       `yaml:"archive"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	JWTSecret   string `yaml:"jwt_secret"`
	RateLimit   int    `yaml:"rate_limit_per_minute"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	RunMigrations bool   `yaml:"run_migrations"`
}

type EventsConfig struct {
	URL string `yaml:"url"`
}

type RecalculationConfig struct {
	Enabled    bool    `yaml:"enabled"`
	IntervalMs int     `yaml:"interval_ms"`
	Tolerance  float64 `yaml:"tolerance"`
	BatchSize  int     `yaml:"batch_size"`
	ThrottleMs int     `yaml:"throttle_ms"`
}

type AuditConfig struct {
	Threshold float64 `yaml:"threshold"`
}

type NarrativeConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) RecalcInterval() time.Duration {
	return time.Duration(c.Recalculation.IntervalMs) * time.Millisecond
}

func (c *Config) RecalcThrottle() time.Duration {
	return time.Duration(c.Recalculation.ThrottleMs) * time.Millisecond
}

// LogLevel maps logging.level onto slog, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Database: DatabaseConfig{
			RunMigrations: true,
		},
		Events: EventsConfig{
			URL: "nats://localhost:4222",
		},
		Recalculation: RecalculationConfig{
			Enabled:    true,
			IntervalMs: int((6 * time.Hour) / time.Millisecond),
			Tolerance:  0.1,
			BatchSize:  50,
			ThrottleMs: 250,
		},
		Audit: AuditConfig{
			Threshold: 90,
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Recalculation.Tolerance <= 0 {
		errs = append(errs, errors.New("recalculation.tolerance must be positive"))
	}
	if c.Recalculation.BatchSize <= 0 {
		errs = append(errs, errors.New("recalculation.batch_size must be positive"))
	}
	if c.Recalculation.ThrottleMs < 0 {
		errs = append(errs, errors.New("recalculation.throttle_ms must not be negative"))
	}
	if c.Recalculation.Enabled && c.Recalculation.IntervalMs <= 0 {
		errs = append(errs, errors.New("recalculation.interval_ms must be positive when enabled"))
	}
	if c.Audit.Threshold <= 0 || c.Audit.Threshold > 100 {
		errs = append(errs, errors.New("audit.threshold must be in (0, 100]"))
	}
	if c.Server.Port <= 0 || c.Server.MetricsPort <= 0 {
		errs = append(errs, errors.New("server ports must be positive"))
	}
	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FLEXING_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("FLEXING_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("FLEXING_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("FLEXING_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("FLEXING_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("FLEXING_RUN_MIGRATIONS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Database.RunMigrations = b
		}
	}
	if v := os.Getenv("FLEXING_EVENTS_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("FLEXING_RECALC_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Recalculation.Enabled = b
		}
	}
	if v := os.Getenv("FLEXING_RECALC_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Recalculation.IntervalMs = n
		}
	}
	if v := os.Getenv("FLEXING_RECALC_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Recalculation.Tolerance = f
		}
	}
	if v := os.Getenv("FLEXING_AUDIT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Audit.Threshold = f
		}
	}
	if v := os.Getenv("FLEXING_NARRATIVE_URL"); v != "" {
		cfg.Narrative.URL = v
	}
	if v := os.Getenv("FLEXING_NARRATIVE_API_KEY"); v != "" {
		cfg.Narrative.APIKey = v
	}
	if v := os.Getenv("FLEXING_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("FLEXING_ARCHIVE_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("FLEXING_ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("FLEXING_ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("FLEXING_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
