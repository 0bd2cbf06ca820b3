package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ytgrabba/internal/domain"
)

func newAcquireCmd(c *cli) *cobra.Command {
	var (
		video    bool
		isBareID bool
		refresh  bool
	)

	cmd := &cobra.Command{
		Use:   "acquire <link>",
		Short: "Download one item and print where it is",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.pipeline()
			if err != nil {
				return err
			}
			defer a.Close()

			kind := domain.KindAudio
			if video {
				kind = domain.KindVideo
			}

			req := domain.NewMediaRequest(args[0], kind, isBareID)
			if refresh {
				if err := a.Service.Forget(req); err != nil {
					return err
				}
			}

			res := a.Service.Acquire(cmd.Context(), req)
			if !res.OK {
				return errors.New(res.Message())
			}

			c.logger.Debug("acquired", "media_id", res.ID.String(), "strategy", string(res.Strategy))
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&video, "video", "v", false, "Download video instead of audio")
	cmd.Flags().BoolVar(&isBareID, "id", false, "Treat the argument as a bare identifier")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Discard any cached copy first")

	return cmd
}
