// Package config centralises configuration for ct-server: defaults, an optional
// YAML file, then CT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage kinds.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config captures runtime configuration values for the server.
type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Log      Log      `yaml:"log"`
	Ledger   Ledger   `yaml:"ledger"`
	Storage  string   `yaml:"storage"`
}

type HTTP struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPC struct {
	HealthAddress string `yaml:"health_address"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer"`
	AccessTTL time.Duration `yaml:"access_ttl"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Ledger holds the day-boundary timezone and list/window sizes.
type Ledger struct {
	Timezone          string `yaml:"timezone"`
	ListLimit         int    `yaml:"list_limit"`
	DefaultWindowDays int    `yaml:"default_window_days"`
	LeaderboardLimit  int    `yaml:"leaderboard_limit"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		HTTP: HTTP{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		GRPC: GRPC{HealthAddress: ":9090"},
		Auth: Auth{
			JWTIssuer: "carbon-tracker",
			AccessTTL: 24 * time.Hour,
		},
		Log: Log{Level: "info"},
		Ledger: Ledger{
			Timezone:          "UTC",
			ListLimit:         100,
			DefaultWindowDays: 30,
			LeaderboardLimit:  10,
		},
		Storage: StoragePostgres,
	}
}

// Load applies the YAML file at path (skipped when empty) and then the
// environment on top of the defaults. The result is not validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTP.Address = getEnv("CT_HTTP_ADDRESS", c.HTTP.Address)
	c.HTTP.ReadTimeout = getDurationEnv("CT_HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = getDurationEnv("CT_HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.IdleTimeout = getDurationEnv("CT_HTTP_IDLE_TIMEOUT", c.HTTP.IdleTimeout)
	c.HTTP.ShutdownTimeout = getDurationEnv("CT_HTTP_SHUTDOWN_TIMEOUT", c.HTTP.ShutdownTimeout)
	c.GRPC.HealthAddress = getEnv("CT_GRPC_HEALTH_ADDRESS", c.GRPC.HealthAddress)
	c.Postgres.DSN = getEnv("CT_POSTGRES_DSN", c.Postgres.DSN)
	c.Auth.JWTSecret = getEnv("CT_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("CT_JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.AccessTTL = getDurationEnv("CT_ACCESS_TTL", c.Auth.AccessTTL)
	c.Log.Level = getEnv("CT_LOG_LEVEL", c.Log.Level)
	c.Log.Development = getBoolEnv("CT_LOG_DEVELOPMENT", c.Log.Development)
	c.Ledger.Timezone = getEnv("CT_TIMEZONE", c.Ledger.Timezone)
	c.Ledger.ListLimit = getIntEnv("CT_LIST_LIMIT", c.Ledger.ListLimit)
	c.Ledger.DefaultWindowDays = getIntEnv("CT_DEFAULT_WINDOW_DAYS", c.Ledger.DefaultWindowDays)
	c.Ledger.LeaderboardLimit = getIntEnv("CT_LEADERBOARD_LIMIT", c.Ledger.LeaderboardLimit)
	c.Storage = strings.ToLower(getEnv("CT_STORAGE", c.Storage))
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var problems []error
	if c.Auth.JWTSecret == "" {
		problems = append(problems, errors.New("auth.jwt_secret is required"))
	}
	if c.Auth.AccessTTL <= 0 {
		problems = append(problems, errors.New("auth.access_ttl must be positive"))
	}
	switch c.Storage {
	case StoragePostgres:
		if c.Postgres.DSN == "" {
			problems = append(problems, errors.New("postgres.dsn is required for postgres storage"))
		}
	case StorageMemory:
	default:
		problems = append(problems, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		problems = append(problems, fmt.Errorf("ledger.timezone: %w", err))
	}
	if c.Ledger.ListLimit <= 0 {
		problems = append(problems, errors.New("ledger.list_limit must be positive"))
	}
	if c.Ledger.DefaultWindowDays <= 0 {
		problems = append(problems, errors.New("ledger.default_window_days must be positive"))
	}
	if c.Ledger.LeaderboardLimit <= 0 {
		problems = append(problems, errors.New("ledger.leaderboard_limit must be positive"))
	}
	return errors.Join(problems...)
}

// Location loads the ledger timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Ledger.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
