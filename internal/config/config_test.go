package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gifsmith/internal/config"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := config.Default()
	// Defaults carry unexpanded ~ paths; Load normalizes them, so expand
	// here the same way before validating.
	expanded, err := config.ExpandPath(cfg.Paths.CacheDir)
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	cfg.Paths.CacheDir = expanded
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("reported a nonexistent file as existing")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Engine.Backend != "ffmpeg" {
		t.Fatalf("default backend = %q", cfg.Engine.Backend)
	}
	if cfg.Overlays.MaxCount != 4 {
		t.Fatalf("default max overlays = %d", cfg.Overlays.MaxCount)
	}
}

func TestLoadParsesAndExpands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
work_dir = "` + dir + `/work"

[engine]
backend = "NATIVE"
timeout_seconds = 10

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected file to be reported as existing")
	}
	if cfg.Engine.Backend != "native" {
		t.Fatalf("backend not normalized: %q", cfg.Engine.Backend)
	}
	if cfg.Engine.TimeoutSeconds != 10 {
		t.Fatalf("timeout = %d", cfg.Engine.TimeoutSeconds)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if !filepath.IsAbs(cfg.Paths.WorkDir) {
		t.Fatalf("work dir not expanded: %q", cfg.Paths.WorkDir)
	}
	// Unset sections keep defaults.
	if cfg.Cache.MaxMiB != 512 {
		t.Fatalf("cache.max_mib default lost: %d", cfg.Cache.MaxMiB)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*config.Config)
		fragment string
	}{
		{"bad backend", func(c *config.Config) { c.Engine.Backend = "wasm" }, "engine.backend"},
		{"zero timeout", func(c *config.Config) { c.Engine.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"zero overlays", func(c *config.Config) { c.Overlays.MaxCount = 0 }, "max_count"},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"backoff inversion", func(c *config.Config) { c.Engine.RetryBackoffMaxMs = 1 }, "retry_backoff_max_ms"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !strings.Contains(err.Error(), tc.fragment) {
				t.Fatalf("error %q missing %q", err, tc.fragment)
			}
		})
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
	// The sample itself must load cleanly.
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}
