package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

func newPlaylistCmd(c *cli) *cobra.Command {
	var (
		limit       int
		isBareID    bool
		download    bool
		video       bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "playlist <link>",
		Short: "List the entries of a playlist, optionally downloading them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.pipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Service.Playlist(cmd.Context(), args[0], limit, isBareID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !download {
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			kind := domain.KindAudio
			if video {
				kind = domain.KindVideo
			}

			failed := 0
			for _, res := range a.Service.AcquireAll(cmd.Context(), ids, kind, concurrency) {
				fmt.Fprintf(out, "%s\t%s\n", res.ID, res.Message())
				if !res.OK {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", failed, len(ids))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Maximum number of entries")
	cmd.Flags().BoolVar(&isBareID, "id", false, "Treat the argument as a bare playlist identifier")
	cmd.Flags().BoolVarP(&download, "download", "d", false, "Download every entry")
	cmd.Flags().BoolVarP(&video, "video", "v", false, "Download video instead of audio")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 2, "Parallel downloads")

	return cmd
}
