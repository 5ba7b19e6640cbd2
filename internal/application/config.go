// Package application provides configuration, strategy wiring and the
// validation orchestrator of the scouting validation engine.
package application

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ahrav/scoutval/internal/ports"
)

// Environment variables read by LoadConfig.
const (
	// EnvConfigPath names an optional YAML config file.
	EnvConfigPath = "SCOUTVAL_CONFIG"

	envPrefix = "SCOUTVAL_"
)

// Config is the process configuration of the validation engine.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`

	// DatabaseURL is the PostgreSQL DSN of the record store.
	DatabaseURL string `koanf:"database_url" validate:"required"`
	// DatabaseMaxConns caps open connections to the record store.
	DatabaseMaxConns int `koanf:"database_max_conns" validate:"min=1,max=100"`

	// RedisAddr enables the result stream sink when set.
	RedisAddr string `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	// RedisStreamPrefix is prepended to event keys to name result streams.
	RedisStreamPrefix string `koanf:"redis_stream_prefix"`
	// RedisStreamMaxLen caps each result stream; zero leaves it unbounded.
	RedisStreamMaxLen int64 `koanf:"redis_stream_max_len" validate:"min=0"`

	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// FieldMappingsPath loads season field mappings from YAML. Empty uses
	// the built-in 2025 mappings.
	FieldMappingsPath string `koanf:"field_mappings_path"`

	// Strategies lists the strategy types to run, in order.
	Strategies []string `koanf:"strategies" validate:"required,min=1,dive,required"`

	// MinScoutsRequired is the consensus scout minimum.
	MinScoutsRequired int `koanf:"min_scouts_required" validate:"min=1,max=20"`
	// MinObservedFraction is the share of scouts that must record a field
	// before it reaches consensus.
	MinObservedFraction float64 `koanf:"min_observed_fraction" validate:"gt=0,lte=1"`
	// MinTeamsWithData is how many scouted teams an alliance needs before
	// official-record validation.
	MinTeamsWithData int `koanf:"min_teams_with_data" validate:"min=1,max=3"`
	// OfficialConfidence is the confidence stamped on official-record
	// results.
	OfficialConfidence float64 `koanf:"official_confidence" validate:"gt=0,lte=1"`

	// MaxConcurrency bounds parallel team validations within a match.
	MaxConcurrency int `koanf:"max_concurrency" validate:"min=1,max=64"`
	// ReadsPerSecond throttles record store reads; zero disables throttling.
	ReadsPerSecond float64 `koanf:"reads_per_second" validate:"min=0"`
	// ReadBurst is the limiter burst size.
	ReadBurst int `koanf:"read_burst" validate:"min=1"`
	// ExecutionTimeout bounds one validation run.
	ExecutionTimeout time.Duration `koanf:"execution_timeout"`
}

// DefaultConfig returns the defaults that LoadConfig layers file and
// environment values over.
func DefaultConfig() Config {
	return Config{
		LogLevel:            "info",
		DatabaseURL:         "postgres://localhost:5432/scoutval?sslmode=disable",
		DatabaseMaxConns:    10,
		RedisStreamPrefix:   "scoutval.results",
		Strategies:          []string{StrategyConsensus, StrategyOfficial},
		MinScoutsRequired:   3,
		MinObservedFraction: 0.5,
		MinTeamsWithData:    3,
		OfficialConfidence:  0.6,
		MaxConcurrency:      6,
		ReadsPerSecond:      0,
		ReadBurst:           10,
		ExecutionTimeout:    10 * time.Minute,
	}
}

var configValidator = validator.New()

// Validate checks field constraints and that every strategy is registered.
func (c Config) Validate(registry *StrategyRegistry) error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if registry == nil {
		return nil
	}
	for _, name := range c.Strategies {
		if !registry.Has(name) {
			return ports.NewConfigError("strategies", unknownNameError("strategy", name, registry.SupportedTypes()))
		}
	}
	return nil
}

// LoadConfig builds a Config by layering, lowest precedence first:
//  1. DefaultConfig
//  2. the YAML file named by SCOUTVAL_CONFIG, if set
//  3. SCOUTVAL_* environment variables (SCOUTVAL_LOG_LEVEL -> log_level)
//
// List values in the environment are comma separated.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigPath); path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewConfigError(EnvConfigPath, fmt.Errorf("%w: %s", ports.ErrConfigNotFound, path))
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, ports.NewConfigError(EnvConfigPath, err)
		}
	}

	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if key == "config" {
			return "", nil
		}
		if key == "strategies" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, ports.NewConfigError("environment", err)
	}

	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, ports.NewConfigError("unmarshal", err)
	}
	return &cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SlogLevel maps LogLevel to a slog level. Unknown values read as info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a JSON logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.SlogLevel()}))
}
