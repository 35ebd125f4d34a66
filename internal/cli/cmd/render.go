package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"captionclip/internal/pipeline"
	"captionclip/internal/util"
)

// renderFlags are shared by render and plan.
type renderFlags struct {
	displayWidth   int
	intrinsicWidth int
	captions       []string
	captionFile    string
	text           string
	fontSize       float64
}

func bindRenderFlags(cmd *cobra.Command) *renderFlags {
	f := &renderFlags{}
	fs := cmd.Flags()
	fs.IntVar(&f.displayWidth, "display-width", 0, "Width in pixels the captions were positioned against")
	fs.IntVar(&f.intrinsicWidth, "intrinsic-width", 0, "Media width in pixels (probed when omitted)")
	fs.StringArrayVarP(&f.captions, "caption", "c", nil, `Caption as "x,y,size,text" in display pixels; repeatable, later ones draw on top`)
	fs.StringVar(&f.captionFile, "captions", "", "YAML file with display_width and a captions list")
	fs.StringVar(&f.text, "text", "", "Single caption centered in the frame")
	fs.Float64Var(&f.fontSize, "font-size", 0, "Font size for --text in pixels (default 48)")
	return f
}

// request assembles a RenderRequest. File captions come first so flag
// captions draw over them.
func (f *renderFlags) request(media string) (pipeline.RenderRequest, error) {
	req := pipeline.RenderRequest{
		CanonicalMediaPath: media,
		IntrinsicWidth:     f.intrinsicWidth,
		DisplayWidth:       f.displayWidth,
		CenteredText:       f.text,
		CenteredFontSize:   f.fontSize,
	}
	if f.captionFile != "" {
		cf, err := loadCaptionFile(f.captionFile)
		if err != nil {
			return req, usageError("--captions: %v", err)
		}
		req.Captions = append(req.Captions, cf.Captions...)
		if req.DisplayWidth == 0 {
			req.DisplayWidth = cf.DisplayWidth
		}
	}
	for _, raw := range f.captions {
		c, err := parseCaption(raw)
		if err != nil {
			return req, usageError("--caption: %v", err)
		}
		req.Captions = append(req.Captions, c)
	}
	if req.DisplayWidth == 0 && len(req.Captions) == 0 {
		// Centered text and plain re-encodes do not depend on display space.
		req.DisplayWidth = 1
		if req.IntrinsicWidth == 0 {
			req.IntrinsicWidth = 1
		}
	}
	return req, nil
}

func newRenderCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <canonical-media>",
		Short: "Burn captions into canonical media",
		Long: "render composites captions into the media produced by load. Media inside the " +
			"workspace is consumed; the rendered file is written next to it unless --out is given.",
		Args: cobra.ExactArgs(1),
	}
	flags := bindRenderFlags(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "Move the rendered file here")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		req, err := flags.request(args[0])
		if err != nil {
			return err
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
		res, err := c.Render(cmd.Context(), req)
		if err != nil {
			return exitFor(err)
		}
		path := res.OutputPath
		if out != "" {
			if filepath.Ext(out) == "" {
				out += filepath.Ext(path)
			}
			if err := util.MoveFile(path, out); err != nil {
				return exitFor(fmt.Errorf("move rendered file: %w", err))
			}
			path = out
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}
	return cmd
}
