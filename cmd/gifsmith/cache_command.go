package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gifsmith/internal/cache"
	"gifsmith/internal/textutil"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Render cache utilities",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCachePruneCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func openCache(ctx *commandContext) (*cache.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := ctx.logger()
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("cache is disabled in configuration")
	}
	return store, nil
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			var total int64
			for _, entry := range entries {
				rows = append(rows, []string{
					textutil.Ellipsize(entry.Key, 13),
					strconv.Itoa(entry.Width) + "x" + strconv.Itoa(entry.Height),
					strconv.FormatInt(entry.SizeBytes, 10),
					entry.LastAccess.Local().Format(time.RFC3339),
				})
				total += entry.SizeBytes
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "Dimensions", "Bytes", "Last access"}, rows, 3))
			fmt.Fprintf(out, "%d entries, %d bytes total\n", len(entries), total)
			return nil
		},
	}
}

func newCachePruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Evict least-recently-used entries beyond the size budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			evicted, err := store.Prune(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d entries\n", evicted)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
			return nil
		},
	}
}
