package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show download directory usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.pipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Service.Stats(cmd.Context())
			if err != nil {
				return err
			}

			free := "unknown"
			if stats.FreeBytes >= 0 {
				free = humanize.IBytes(uint64(stats.FreeBytes))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "download dir: %s\nfree space:   %s\n", stats.DownloadDir, free)
			return nil
		},
	}
}
