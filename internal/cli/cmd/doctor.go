package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"captionclip/internal/dirs"
	"captionclip/internal/util"
	"captionclip/internal/util/deps"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose ffmpeg, ffprobe and the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := settingsFrom(cmd)
			w := cmd.OutOrStdout()

			ff, ferr := deps.FindFFmpeg(s.FFmpeg)
			if ferr != nil {
				return &ExitError{Code: ExitMissingDep, Err: ferr}
			}
			fmt.Fprintf(w, "FFmpeg:     %s\n", ff)
			if fp, err := deps.FindFFprobe(s.FFprobe); err == nil {
				fmt.Fprintf(w, "FFprobe:    %s\n", fp)
			} else {
				fmt.Fprintf(w, "FFprobe:    missing (%v); render needs --intrinsic-width\n", err)
			}

			ws, err := util.OpenWorkspace(s.WorkDir)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			probe, err := ws.Create("doctor", ".tmp")
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("workspace %s is not writable: %w", ws.Dir, err)}
			}
			probe.Close()
			_ = os.Remove(probe.Name())
			fmt.Fprintf(w, "Workspace:  %s\n", ws.Dir)

			cfg := viper.ConfigFileUsed()
			if cfg == "" {
				cfg = "(none)"
			}
			fmt.Fprintf(w, "Config:     %s\n", cfg)
			if lf, err := dirs.LogFile(); err == nil {
				fmt.Fprintf(w, "UI log:     %s\n", lf)
			}
			return nil
		},
	}
}
