package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gifsmith/internal/api"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the gifsmith version",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "gifsmith %s\n", api.Version)
			return nil
		},
	}
}
