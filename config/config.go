// Package config loads the application configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting the modules need. It is built once at startup
// and handed to each module constructor.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Session  SessionConfig
	Login    LoginThrottleConfig

	// StoreTimeout bounds every store call made by the services.
	StoreTimeout time.Duration
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver string
	// Path is the SQLite file; ignored for postgres.
	Path string
	// DSN is the postgres connection string; ignored for sqlite.
	DSN   string
	Debug bool
}

// SessionConfig configures session tokens and session storage.
type SessionConfig struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	BcryptCost int
	// SecureCookie marks the session cookie Secure (HTTPS only).
	SecureCookie bool
	// RedisAddr switches session records from the database to Redis when set.
	RedisAddr string
}

// LoginThrottleConfig configures the per-IP limiter on credential endpoints.
// The limiter is disabled when RedisAddr is empty.
type LoginThrottleConfig struct {
	RedisAddr string
	Limit     int
	Window    time.Duration
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		HTTPAddr:        ":3000",
		ShutdownTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "tasks.db",
		},
		Session: SessionConfig{
			Secret:     "change-me-in-production",
			Issuer:     "task-tracker",
			TTL:        24 * time.Hour,
			BcryptCost: 12,
		},
		Login: LoginThrottleConfig{
			Limit:  10,
			Window: time.Minute,
		},
		StoreTimeout: 5 * time.Second,
	}
}

// Load reads a .env file when present, then overlays environment variables
// on top of Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs []error

	if v := getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	cfg.Database.DSN = getenv("DB_DSN")
	cfg.Database.Debug = getenv("DB_DEBUG") == "true"

	if v := getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := getenv("SESSION_ISSUER"); v != "" {
		cfg.Session.Issuer = v
	}
	cfg.Session.SecureCookie = getenv("SESSION_SECURE_COOKIE") == "true"
	cfg.Session.RedisAddr = getenv("SESSION_REDIS_ADDR")
	cfg.Login.RedisAddr = getenv("RATE_LIMIT_REDIS_ADDR")

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &cfg.Session.TTL},
		{"LOGIN_RATE_WINDOW", &cfg.Login.Window},
		{"STORE_TIMEOUT", &cfg.StoreTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", d.key, v))
			continue
		}
		*d.dst = parsed
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"LOGIN_RATE_LIMIT", &cfg.Login.Limit},
		{"BCRYPT_COST", &cfg.Session.BcryptCost},
	}
	for _, n := range ints {
		v := getenv(n.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", n.key, v))
			continue
		}
		*n.dst = parsed
	}

	switch cfg.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.Database.DSN == "" {
			errs = append(errs, errors.New("DB_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.Database.Driver))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
