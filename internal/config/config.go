package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// Color modes
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

const (
	readFailedCode  = "CONFIG_READ_FAILED"
	parseFailedCode = "CONFIG_PARSE_FAILED"
	invalidCode     = "CONFIG_INVALID"
)

// Config holds the settings a config file may provide. Command line flags
// that were set explicitly take precedence over these values.
type Config struct {
	Verbose  bool   `yaml:"verbose"`
	Jobs     int    `yaml:"jobs"`
	Color    string `yaml:"color"`
	LogLevel string `yaml:"log_level"`
	// Schema is a path to an XSD file used instead of the bundled schema.
	// Empty means the bundled schema.
	Schema string `yaml:"schema"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Verbose:  false,
		Jobs:     1,
		Color:    ColorAuto,
		LogLevel: "warn",
	}
}

// LoadConfigFromFile loads configuration from a specific file
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "read config file").
			WithTextCode(readFailedCode)
	}

	return LoadConfigFromData(data)
}

// LoadConfigFromData decodes YAML on top of DefaultConfig and validates the
// result. Unknown keys are rejected.
func LoadConfigFromData(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "parse config file").
			WithTextCode(parseFailedCode)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c *Config) Validate() error {
	errs := validation.Errors{}
	if c.Jobs < 1 {
		errs["jobs"] = validation.NewError("config.jobs_invalid", "jobs must be at least 1")
	}
	if err := validation.Validate(c.Color,
		validation.Required.ErrorObject(validation.NewError("config.color_required", "color is required")),
		validation.In(ColorAuto, ColorAlways, ColorNever).
			ErrorObject(validation.NewError("config.color_invalid", "color must be one of auto, always, never")),
	); err != nil {
		errs["color"] = err
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs["log_level"] = validation.NewError("config.log_level_invalid", "log_level must be one of debug, info, warn, error")
	}
	if len(errs) == 0 {
		return nil
	}

	gerr := goerrors.FromOzzoValidation(errs, "invalid configuration")
	sortFieldErrors(gerr.ValidationErrors)
	return gerr.WithTextCode(invalidCode)
}

// Level returns the configured log level, falling back to warn.
func (c *Config) Level() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelWarn
	}
	return level
}

// ParseLevel parses a slog level name such as "debug" or "warn".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelWarn, err
	}
	return level, nil
}

func sortFieldErrors(errs goerrors.ValidationErrors) {
	slices.SortFunc(errs, func(a, b goerrors.FieldError) int {
		return strings.Compare(a.Field, b.Field)
	})
}
