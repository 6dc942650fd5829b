package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abemedia/plotview/plotlyjs"
)

func newRuntimeCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "runtime",
		Short: "Download Plotly.js into the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, err := f.resolve(cmd)
			if err != nil {
				return err
			}
			src, err := plotlyjs.Default.Source(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("Plotly.js available", "version", plotlyjs.Version, "bytes", len(src))
			fmt.Fprintln(cmd.OutOrStdout(), plotlyjs.Version)
			return nil
		},
	}
}
