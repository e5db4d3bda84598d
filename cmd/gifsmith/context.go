package main

import (
	"log/slog"
	"strings"
	"sync"

	"gifsmith/internal/config"
	"gifsmith/internal/engine"
	"gifsmith/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
}

// backend builds the engine backend named by configuration.
func (c *commandContext) backend() (engine.Backend, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.Engine.Backend {
	case "native":
		return engine.NewNativeBackend(), nil
	default:
		return engine.NewFFmpegBackend(
			engine.WithBinary(cfg.Engine.FFmpegBinary),
			engine.WithWorkDir(cfg.Paths.WorkDir),
		), nil
	}
}

func (c *commandContext) adapter() (*engine.Adapter, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	backend, err := c.backend()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return engine.NewAdapter(backend, uint64(cfg.Engine.MemoryCeilingMiB)<<20, logger), nil
}
