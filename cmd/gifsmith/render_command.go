package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gifsmith/internal/cache"
	"gifsmith/internal/geometry"
	"gifsmith/internal/overlay"
	"gifsmith/internal/pipeline"
	"gifsmith/internal/probe"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		texts       []string
		positions   []string
		outputPath  string
		fontSize    float64
		fontWeight  string
		color       string
		strokeColor string
		strokeWidth float64
		opacity     float64
	)

	cmd := &cobra.Command{
		Use:   "render <source>",
		Short: "Composite text overlays onto a GIF and write the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			overlays, err := buildOverlays(texts, positions, overlay.Style{
				FontSize:    fontSize,
				FontFamily:  overlay.DefaultStyle().FontFamily,
				Color:       color,
				StrokeColor: strokeColor,
				StrokeWidth: strokeWidth,
				Opacity:     opacity,
				FontWeight:  overlay.Weight(fontWeight),
				TextAlign:   overlay.AlignCenter,
			})
			if err != nil {
				return err
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
			defer func() {
				if err := adapter.Dispose(); err != nil {
					logger.Warn("dispose engine", "error", err)
				}
			}()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			updates, unsubscribe := proc.Subscribe()
			defer unsubscribe()
			progressDone := make(chan struct{})
			go func() {
				defer close(progressDone)
				reportProgress(cmd.OutOrStdout(), updates)
			}()

			result, err := proc.Process(runCtx, probe.Descriptor{URL: args[0]}, overlays)
			unsubscribe()
			<-progressDone
			if err != nil {
				return err
			}

			if err := os.WriteFile(outputPath, result.EncodedBytes, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%dx%d, %d bytes) in %s\n",
				outputPath, result.Width, result.Height, result.SizeBytes,
				result.ProcessingTime.Round(time.Millisecond))
			if result.FromCache {
				fmt.Fprintln(out, "Result served from cache")
			}
			return nil
		},
	}

	style := overlay.DefaultStyle()
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "Overlay text (repeatable)")
	cmd.Flags().StringArrayVar(&positions, "at", nil, "Overlay position as \"x,y\" percentages (pairs with --text)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "output.gif", "Output file path")
	cmd.Flags().Float64Var(&fontSize, "font-size", style.FontSize, "Font size in pixels")
	cmd.Flags().StringVar(&fontWeight, "weight", string(style.FontWeight), "Font weight (normal or bold)")
	cmd.Flags().StringVar(&color, "color", style.Color, "Fill color as hex")
	cmd.Flags().StringVar(&strokeColor, "stroke-color", style.StrokeColor, "Stroke color as hex")
	cmd.Flags().Float64Var(&strokeWidth, "stroke-width", style.StrokeWidth, "Stroke width in pixels")
	cmd.Flags().Float64Var(&opacity, "opacity", style.Opacity, "Overlay opacity from 0 to 1")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

// buildOverlays pairs texts with positions. A missing position falls back
// to the centre; extra positions are an error.
func buildOverlays(texts, positions []string, style overlay.Style) ([]overlay.TextOverlay, error) {
	if len(positions) > len(texts) {
		return nil, fmt.Errorf("%d positions given for %d texts", len(positions), len(texts))
	}
	overlays := make([]overlay.TextOverlay, 0, len(texts))
	for i, text := range texts {
		o := overlay.New(text)
		o.Style = style
		if i < len(positions) {
			pos, err := parsePosition(positions[i])
			if err != nil {
				return nil, err
			}
			o.Position = pos
		}
		overlays = append(overlays, o)
	}
	return overlays, nil
}

func parsePosition(value string) (geometry.Position, error) {
	parts := strings.SplitN(value, ",", 2)
	if len(parts) != 2 {
		return geometry.Position{}, fmt.Errorf("position %q is not \"x,y\"", value)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geometry.Position{}, fmt.Errorf("position %q: %w", value, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geometry.Position{}, fmt.Errorf("position %q: %w", value, err)
	}
	return geometry.Position{X: x, Y: y}, nil
}
