// Package config loads the service's YAML configuration file, layering
// environment-variable overrides on top of it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/radsched/radsched/pkg/model"
)

// Config is the root configuration tree.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// AppConfig carries process identity settings.
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// ServerConfig configures the HTTP listener and its middleware.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RateLimit    int           `yaml:"rate_limit"` // requests/sec; 0 or less uses 100
	CORS         CORSConfig    `yaml:"cors"`
}

// CORSConfig controls the cross-origin policy applied to every response.
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// DatabaseConfig configures the optional Postgres-backed snapshot store.
// Host == "" means the service runs entirely from the in-memory holder.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled reports whether a snapshot store connection was configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns the libpq-style connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SchedulerConfig tunes the Solver Driver's default budgets and backend
// choice when a solve request doesn't override them via solverSettings.
type SchedulerConfig struct {
	DefaultBackend    model.SolverBackend `yaml:"default_backend"`
	ShardBudget       time.Duration       `yaml:"shard_budget"`
	GlobalBudget      time.Duration       `yaml:"global_budget"`
	MaxIterations     int                 `yaml:"max_iterations"`
	OptimizationLevel int                 `yaml:"optimization_level"` // 1=fast, 2=balanced, 3=best-effort
}

// Default returns the configuration used when no file is found and no
// overriding environment variables are set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "radsched",
			Env:      "development",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Port:         7012,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute, // /solve/week can stream SSE for a while
			RateLimit:    100,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Port:            5432,
			Name:            "radsched",
			User:            "radsched",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			DefaultBackend:    model.BackendHeuristic,
			ShardBudget:       30 * time.Second,
			GlobalBudget:      5 * time.Minute,
			MaxIterations:     2000,
			OptimizationLevel: 2,
		},
	}
}

// Load reads path as YAML into a Config seeded with Default(), then applies
// environment-variable overrides on top. A missing file at path is not an
// error: the service falls back to defaults plus environment overrides,
// matching how the process is run in a container with no mounted config.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %q: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.LogLevel = getEnv("APP_LOG_LEVEL", cfg.App.LogLevel)
	cfg.Server.Port = getEnvInt("APP_PORT", cfg.Server.Port)

	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
}

// IsDevelopment reports whether the process is running in dev mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction reports whether the process is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
