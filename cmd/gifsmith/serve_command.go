package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gifsmith/internal/api"
	"gifsmith/internal/cache"
	"gifsmith/internal/pipeline"
	"gifsmith/internal/preflight"
)

const shutdownGrace = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg)
			for _, check := range checks {
				logger.Info("preflight", "check", check.Name, "passed", check.Passed, "detail", check.Detail)
			}
			if failed := preflight.Failures(checks); len(failed) > 0 {
				return fmt.Errorf("preflight failed: %s (%s)", failed[0].Name, failed[0].Detail)
			}

			adapter, err := ctx.adapter()
			if err != nil {
				return err
			}
			store, err := cache.Open(cfg, logger)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			defer store.Close()

			proc := pipeline.NewProcessor(cfg, adapter, store, logger)
			server := api.New(cfg, proc, store, logger)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-runCtx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := adapter.Dispose(); err != nil {
				logger.Warn("dispose engine", "error", err)
			}
			return <-errCh
		},
	}
}
