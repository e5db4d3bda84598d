package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gifsmith/internal/preflight"
)

func newEngineCommand(ctx *commandContext) *cobra.Command {
	engineCmd := &cobra.Command{
		Use:   "engine",
		Short: "Transcoding engine utilities",
	}

	engineCmd.AddCommand(newEngineStatusCommand(ctx))
	engineCmd.AddCommand(newEngineInitCommand(ctx))
	engineCmd.AddCommand(newEngineDisposeCommand(ctx))

	return engineCmd
}

func newEngineStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the configured engine backend can load",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			adapter, err := ctx.adapter()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintln(out, renderStatusLine("Backend", statusInfo, cfg.Engine.Backend, colorize))

			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				kind := statusOK
				detail := status.Command
				if !status.Available {
					kind = statusError
					detail = status.Detail
				}
				fmt.Fprintln(out, renderStatusLine(status.Name, kind, detail, colorize))
			}

			if err := adapter.Initialize(cmd.Context()); err != nil {
				fmt.Fprintln(out, renderStatusLine("Engine", statusError, err.Error(), colorize))
				return err
			}
			defer func() { _ = adapter.Dispose() }()

			usage := adapter.MemoryUsage()
			fmt.Fprintln(out, renderStatusLine("Engine", statusOK, "loaded", colorize))
			fmt.Fprintln(out, renderStatusLine("Memory ceiling", statusInfo,
				fmt.Sprintf("%d MiB", usage.MaxBytes>>20), colorize))
			return nil
		},
	}
}

func newEngineInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Load the engine backend once and report the load time",
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := ctx.adapter()
			if err != nil {
				return err
			}

			start := time.Now()
			if err := adapter.Initialize(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = adapter.Dispose() }()

			fmt.Fprintf(cmd.OutOrStdout(), "Engine loaded in %s\n",
				time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newEngineDisposeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dispose",
		Short: "Remove staging directories left behind by interrupted jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			entries, err := os.ReadDir(cfg.Paths.WorkDir)
			if err != nil {
				return fmt.Errorf("read work dir: %w", err)
			}
			removed := 0
			for _, entry := range entries {
				if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "gifsmith-job-") {
					continue
				}
				path := filepath.Join(cfg.Paths.WorkDir, entry.Name())
				if err := os.RemoveAll(path); err != nil {
					return fmt.Errorf("remove %s: %w", path, err)
				}
				removed++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d staging directories\n", removed)
			return nil
		},
	}
}
