package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateOverlays(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateHTTP(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateEngine() error {
	switch c.Engine.Backend {
	case "ffmpeg", "native":
	default:
		return fmt.Errorf("engine.backend must be %q or %q, got %q", "ffmpeg", "native", c.Engine.Backend)
	}
	if c.Engine.Backend == "ffmpeg" && strings.TrimSpace(c.Engine.FFmpegBinary) == "" {
		return errors.New("engine.ffmpeg_binary must be set when engine.backend is ffmpeg")
	}
	if c.Engine.TimeoutSeconds <= 0 {
		return errors.New("engine.timeout_seconds must be positive")
	}
	if c.Engine.MemoryCeilingMiB < 0 {
		return errors.New("engine.memory_ceiling_mib must not be negative")
	}
	if c.Engine.ProbeTimeoutSecs <= 0 {
		return errors.New("engine.probe_timeout_seconds must be positive")
	}
	if c.Engine.RetryBackoffMs <= 0 {
		return errors.New("engine.retry_backoff_ms must be positive")
	}
	if c.Engine.RetryBackoffMaxMs < c.Engine.RetryBackoffMs {
		return errors.New("engine.retry_backoff_max_ms must be at least engine.retry_backoff_ms")
	}
	return nil
}

func (c *Config) validateOverlays() error {
	if c.Overlays.MaxCount < 1 {
		return errors.New("overlays.max_count must be at least 1")
	}
	return nil
}

func (c *Config) validateCache() error {
	if !c.Cache.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		return errors.New("paths.cache_dir must be set when cache.enabled is true")
	}
	if c.Cache.MaxMiB <= 0 {
		return errors.New("cache.max_mib must be positive when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateHTTP() error {
	if strings.TrimSpace(c.HTTP.Bind) == "" {
		return errors.New("http.bind must be set")
	}
	if c.HTTP.RequestTimeoutSeconds <= 0 {
		return errors.New("http.request_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be %q or %q, got %q", "console", "json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q unsupported", c.Logging.Level)
	}
	return nil
}
