package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"captionclip/internal/server"
)

func newServeCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local JSON API",
		Long: "serve exposes acquire, render and export over HTTP for a local front end. " +
			"It binds to loopback by default; there is no authentication.",
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default 127.0.0.1:7077)")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		s := settingsFrom(cmd)
		if cmd.Flags().Changed("listen") {
			s.Listen = listen
		}
		tc, err := findToolchain(s)
		if err != nil {
			return err
		}
		c, err := newCoordinator(s, tc, logReporter{log: logger()})
		if err != nil {
			return err
		}
		srv := server.New(c, server.Options{
			Logger:      log.Logger,
			Health:      server.Health{FFmpeg: tc.FFmpeg, FFprobe: tc.FFprobe},
			BaseContext: cmd.Context(),
		})
		if err := srv.Listen(cmd.Context(), s.Listen); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		return nil
	}
	return cmd
}
