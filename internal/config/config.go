// Package config loads the YAML configuration file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "syllabus.yaml"

type Config struct {
	Listen   string `yaml:"listen" validate:"required"`
	Password string `yaml:"password"`
	Timezone string `yaml:"timezone" validate:"required"`
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Sheet   SheetConfig   `yaml:"sheet"`
	Learned LearnedConfig `yaml:"learned"`
	Views   ViewsConfig   `yaml:"views"`
	Session SessionConfig `yaml:"session"`
}

type SheetConfig struct {
	URL      string        `yaml:"url" validate:"required,url"`
	Select   string        `yaml:"select"`
	Backend  string        `yaml:"backend" validate:"oneof=gviz sheets-api"`
	APIKey   string        `yaml:"api_key" validate:"required_if=Backend sheets-api"`
	Range    string        `yaml:"range"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gt=0"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type LearnedConfig struct {
	Backend string `yaml:"backend" validate:"oneof=json sqlite postgres"`
	Path    string `yaml:"path" validate:"required_unless=Backend postgres"`
	DSN     string `yaml:"dsn" validate:"required_if=Backend postgres"`
}

// ViewsConfig bounds the day sliders of both views.
type ViewsConfig struct {
	MinDays     int `yaml:"min_days" validate:"gte=1"`
	MaxDays     int `yaml:"max_days" validate:"gtefield=MinDays"`
	DefaultDays int `yaml:"default_days" validate:"gtefield=MinDays,ltefield=MaxDays"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gt=0"`
}

// Default returns the configuration used when the file leaves a field unset.
func Default() Config {
	return Config{
		Listen:   ":8080",
		Timezone: "Local",
		LogLevel: "info",
		Sheet: SheetConfig{
			Select:   "SELECT *",
			Backend:  "gviz",
			CacheTTL: 10 * time.Minute,
			Timeout:  30 * time.Second,
		},
		Learned: LearnedConfig{
			Backend: "json",
			Path:    "data/learned.json",
		},
		Views: ViewsConfig{
			MinDays:     7,
			MaxDays:     100,
			DefaultDays: 14,
		},
		Session: SessionConfig{
			IdleTimeout: 12 * time.Hour,
		},
	}
}

var validate = validator.New()

// Load reads path over the defaults, applies SYLLABUS_* environment
// overrides and validates the result. A missing file is accepted only when
// allowMissing is set.
func Load(path string, allowMissing bool) (Config, error) {
	cfg, err := read(path, allowMissing)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadStorage is Load for commands that only touch the learned-state
// storage. Only the learned section is validated, so the sheet may still be
// unconfigured.
func LoadStorage(path string, allowMissing bool) (Config, error) {
	cfg, err := read(path, allowMissing)
	if err != nil {
		return Config{}, err
	}
	if err := validate.Struct(cfg.Learned); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func read(path string, allowMissing bool) (Config, error) {
	cfg := Default()
	payload, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(payload, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && allowMissing:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

// Validate checks field constraints and that the timezone exists.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog level.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("SYLLABUS_LISTEN", &cfg.Listen)
	set("SYLLABUS_PASSWORD", &cfg.Password)
	set("SYLLABUS_TIMEZONE", &cfg.Timezone)
	set("SYLLABUS_LOG_LEVEL", &cfg.LogLevel)
	set("SYLLABUS_SHEET_URL", &cfg.Sheet.URL)
	set("SYLLABUS_SHEETS_API_KEY", &cfg.Sheet.APIKey)
	set("SYLLABUS_LEARNED_BACKEND", &cfg.Learned.Backend)
	set("SYLLABUS_LEARNED_PATH", &cfg.Learned.Path)
	set("SYLLABUS_LEARNED_DSN", &cfg.Learned.DSN)
}
