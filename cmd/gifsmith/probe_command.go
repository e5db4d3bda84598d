package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gifsmith/internal/probe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <source>",
		Short: "Inspect a GIF source without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			prober := probe.NewProber(time.Duration(cfg.Engine.ProbeTimeoutSecs) * time.Second)
			descriptor, data, err := prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rows := [][]string{
				{"Source", descriptor.URL},
				{"Width", strconv.Itoa(descriptor.NaturalWidth)},
				{"Height", strconv.Itoa(descriptor.NaturalHeight)},
				{"Frames", strconv.Itoa(descriptor.FrameCount)},
				{"Duration", (time.Duration(descriptor.DurationMs) * time.Millisecond).String()},
				{"Size", strconv.Itoa(len(data)) + " bytes"},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, 2))
			return nil
		},
	}
}
