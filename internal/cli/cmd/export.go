package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"captionclip/internal/util/format"
)

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <media>",
		Short: "Export rendered media as a GIF",
		Long:  "export re-encodes media to a GIF at 25 fps. Use -o - to write the GIF to stdout.",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `Output path, or "-" for stdout (default <name>.gif in the current directory)`)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		media := args[0]
		if out == "" {
			out = strings.TrimSuffix(filepath.Base(media), filepath.Ext(media)) + ".gif"
		}
		s := settingsFrom(cmd)
		tc, err := findToolchain(s)
		if err != nil {
			return err
		}
		c, err := newCoordinator(s, tc, logReporter{log: logger()})
		if err != nil {
			return err
		}
		gif, err := c.Export(cmd.Context(), media)
		if err != nil {
			return exitFor(err)
		}
		defer gif.Release()

		if out == "-" {
			if _, err := gif.WriteTo(cmd.OutOrStdout()); err != nil {
				return exitFor(fmt.Errorf("write gif: %w", err))
			}
			return nil
		}
		f, err := os.Create(out)
		if err != nil {
			return exitFor(err)
		}
		n, err := gif.WriteTo(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(out)
			return exitFor(fmt.Errorf("write gif: %w", err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (%s)\n", out, format.HumanizeBytes(n))
		return nil
	}
	return cmd
}
