// Package config resolves runtime settings from environment variables, an
// optional YAML file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Source          string        `yaml:"source" validate:"required"`
	Output          string        `yaml:"output"`
	DBPath          string        `yaml:"db_path" validate:"required_if=Serve true"`
	WorkDir         string        `yaml:"work_dir"`
	HorizonMinutes  float64       `yaml:"horizon_minutes" validate:"gt=0"`
	Workers         int           `yaml:"workers" validate:"gte=0"`
	Serve           bool          `yaml:"serve"`
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gte=0"` // 0 disables
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	LogLevel        string        `yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `yaml:"log_format" validate:"oneof=text json"`
}

// ErrNoSink is returned when neither an output file nor a database is set.
var ErrNoSink = errors.New("nothing to write: set output or db_path")

// Load reads defaults from the environment and overlays the YAML file at
// path when path is non-empty. The result is not validated; call Validate
// after applying flag overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Source:          envStr("TRANSITMATRIX_SOURCE", ""),
		Output:          envStr("TRANSITMATRIX_OUTPUT", "travel_times.json"),
		DBPath:          envStr("TRANSITMATRIX_DB_PATH", ""),
		WorkDir:         envStr("TRANSITMATRIX_WORK_DIR", os.TempDir()),
		HorizonMinutes:  envFloat("TRANSITMATRIX_HORIZON_MINUTES", 120),
		Workers:         envInt("TRANSITMATRIX_WORKERS", 0),
		Serve:           envBool("TRANSITMATRIX_SERVE", false),
		RefreshInterval: envDuration("TRANSITMATRIX_REFRESH_INTERVAL", 0),
		Port:            envInt("TRANSITMATRIX_PORT", 8080),
		LogLevel:        envStr("TRANSITMATRIX_LOG_LEVEL", "info"),
		LogFormat:       envStr("TRANSITMATRIX_LOG_FORMAT", "text"),
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and that at least one sink is set.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Output == "" && c.DBPath == "" {
		return ErrNoSink
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
