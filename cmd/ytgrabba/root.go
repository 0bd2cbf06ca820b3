package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iconidentify/ytgrabba/internal/app"
	"github.com/iconidentify/ytgrabba/internal/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "ytgrabba",
		Short: "Download audio and video by link or identifier",
		Long: `ytgrabba fetches media through a conversion API and falls back to a
local yt-dlp install. Finished files land in the download directory and are
reused on the next request.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().BoolVarP(&c.debug, "debug", "x", false, "Debug logging to stderr")

	root.AddCommand(newAcquireCmd(c))
	root.AddCommand(newPlaylistCmd(c))
	root.AddCommand(newHistoryCmd(c))
	root.AddCommand(newStatsCmd(c))
	root.AddCommand(newVersionCmd())

	return root
}

// load reads configuration and sets up logging before any subcommand runs.
func (c *cli) load(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if c.debug {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)

	if cmd.Name() == "version" {
		return nil
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// pipeline wires the acquisition service. The caller must Close it.
func (c *cli) pipeline() (*app.App, error) {
	a, err := app.New(c.cfg, c.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing: %w", err)
	}
	return a, nil
}
