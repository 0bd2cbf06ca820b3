package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newHistoryCmd(c *cli) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent acquisitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.pipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.Service.History(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No history entries found.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tID\tKIND\tSTRATEGY\tRESULT\tTOOK")
			for _, e := range entries {
				result := "ok"
				if !e.OK {
					result = e.ErrorKind
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(e.CreatedAt),
					e.MediaID,
					e.Kind,
					e.Strategy,
					result,
					e.Duration.Round(time.Millisecond),
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")

	return cmd
}
