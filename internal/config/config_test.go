package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Verbose {
		t.Error("Verbose should default to false")
	}
	if cfg.Jobs != 1 {
		t.Errorf("Jobs = %d, want 1", cfg.Jobs)
	}
	if cfg.Color != ColorAuto {
		t.Errorf("Color = %s, want auto", cfg.Color)
	}
	if cfg.Level() != slog.LevelWarn {
		t.Errorf("Level() = %v, want WARN", cfg.Level())
	}
	if cfg.Schema != "" {
		t.Errorf("Schema = %q, want bundled schema", cfg.Schema)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadConfigFromData(t *testing.T) {
	cfg, err := LoadConfigFromData([]byte(`
verbose: true
jobs: 4
color: never
log_level: debug
schema: schemas/tumorml.xsd
`))
	if err != nil {
		t.Fatalf("LoadConfigFromData failed: %v", err)
	}

	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}
	if cfg.Jobs != 4 {
		t.Errorf("Jobs = %d, want 4", cfg.Jobs)
	}
	if cfg.Color != ColorNever {
		t.Errorf("Color = %s, want never", cfg.Color)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", cfg.Level())
	}
	if cfg.Schema != "schemas/tumorml.xsd" {
		t.Errorf("Schema = %s, want schemas/tumorml.xsd", cfg.Schema)
	}
}

func TestLoadConfigFromData_Partial(t *testing.T) {
	for _, data := range []string{"", "jobs: 2\n"} {
		cfg, err := LoadConfigFromData([]byte(data))
		if err != nil {
			t.Fatalf("LoadConfigFromData(%q) failed: %v", data, err)
		}
		// Defaults should be preserved
		if cfg.Color != ColorAuto || cfg.LogLevel != "warn" || cfg.Verbose {
			t.Errorf("defaults not preserved for %q: %+v", data, cfg)
		}
	}
}

func TestLoadConfigFromData_Errors(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		category goerrors.Category
		contains []string
	}{
		{name: "unknown key", data: "verbosity: true\n", category: goerrors.CategoryBadInput, contains: []string{"verbosity"}},
		{name: "wrong type", data: "jobs: many\n", category: goerrors.CategoryBadInput},
		{name: "zero jobs", data: "jobs: 0\n", category: goerrors.CategoryValidation, contains: []string{"jobs must be at least 1"}},
		{name: "bad color", data: "color: rainbow\n", category: goerrors.CategoryValidation, contains: []string{"color must be one of"}},
		{name: "empty color", data: "color: \"\"\n", category: goerrors.CategoryValidation, contains: []string{"color is required"}},
		{name: "bad log level", data: "log_level: loud\n", category: goerrors.CategoryValidation, contains: []string{"log_level"}},
		{
			name:     "several problems",
			data:     "jobs: -1\ncolor: rainbow\n",
			category: goerrors.CategoryValidation,
			contains: []string{"color: color must be one of auto, always, never; jobs: jobs must be at least 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromData([]byte(tt.data))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !goerrors.IsCategory(err, tt.category) {
				t.Errorf("expected category %s, got %v", tt.category, err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not contain %q", err.Error(), want)
				}
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tumorml.yaml")
	if err := os.WriteFile(path, []byte("verbose: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if !cfg.Verbose {
		t.Error("Verbose = false, want true")
	}

	_, err = LoadConfigFromFile(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist for a missing file, got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryBadInput) {
		t.Errorf("expected bad_input category, got %v", err)
	}
}
