package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"captionclip/internal/encoder"
	"captionclip/internal/util"
)

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <canonical-media>",
		Short: "Print the ffmpeg command render would run",
		Args:  cobra.ExactArgs(1),
	}
	flags := bindRenderFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		req, err := flags.request(args[0])
		if err != nil {
			return err
		}
		s := settingsFrom(cmd)
		tc, err := findToolchain(s)
		if err != nil {
			// Planning never runs ffmpeg.
			tc = toolchain{FFmpeg: "ffmpeg"}
		}
		c, err := newCoordinator(s, tc, logReporter{log: logger()})
		if err != nil {
			return err
		}
		inv, err := c.PlanRender(cmd.Context(), req)
		if err != nil {
			return exitFor(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), util.ShellQuote(tc.FFmpeg, encoder.BuildArgs(inv, true)))
		return nil
	}
	return cmd
}
