package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"captionclip/internal/config"
	"captionclip/internal/dirs"
	"captionclip/internal/logging"
	"captionclip/internal/model"
	"captionclip/internal/pipeline"
	"captionclip/internal/progress"
	"captionclip/internal/ui"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <file|url>...",
		Short: "Acquire media and normalize it into the workspace",
		Long: "load accepts local paths, direct .gif/.mp4/.webm URLs and sharing pages on the " +
			"configured indirection hosts. Each reference becomes canonical media whose path is " +
			"printed for use with render.",
		Args: cobra.MinimumNArgs(1),
		RunE: runLoad,
	}
	cmd.Flags().Bool("no-ui", false, "Disable the TUI; print one result per line")
	cmd.Flags().Bool("json", false, "Print results as JSON lines (implies --no-ui)")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	s := settingsFrom(cmd)
	tc, err := findToolchain(s)
	if err != nil {
		return err
	}
	noUI, _ := cmd.Flags().GetBool("no-ui")
	asJSON, _ := cmd.Flags().GetBool("json")

	var outcomes []ui.Outcome
	if !noUI && !asJSON && isTerminal() {
		outcomes, err = loadWithUI(cmd.Context(), s, tc, args)
		if err != nil {
			return exitFor(err)
		}
	} else {
		outcomes, err = loadPlain(cmd.Context(), s, tc, args)
		if err != nil {
			return err
		}
	}
	return reportOutcomes(cmd.OutOrStdout(), outcomes, asJSON)
}

// loadPlain acquires up to s.Jobs references at a time without a UI.
func loadPlain(ctx context.Context, s config.Settings, tc toolchain, refs []string) ([]ui.Outcome, error) {
	c, err := newCoordinator(s, tc, logReporter{log: logger()})
	if err != nil {
		return nil, err
	}
	outcomes := make([]ui.Outcome, len(refs))
	var g errgroup.Group
	g.SetLimit(s.Jobs)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			res, err := c.Acquire(ctx, ref)
			outcomes[i] = ui.Outcome{Reference: ref, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

// loadWithUI runs the TUI. Logs go to the state dir while it owns the terminal.
func loadWithUI(ctx context.Context, s config.Settings, tc toolchain, refs []string) ([]ui.Outcome, error) {
	if path, err := dirs.LogFile(); err == nil {
		if ensureErr := dirs.EnsureAll(); ensureErr == nil {
			if f, openErr := logging.OpenFile(path); openErr == nil {
				defer f.Close()
				logging.Init(logging.Options{Verbose: s.Verbose, JSON: true, Out: f})
				defer logging.Init(logging.Options{Verbose: s.Verbose, JSON: s.LogJSON})
			}
		}
	}

	opts, err := coordinatorOptions(s, tc)
	if err != nil {
		return nil, err
	}
	registry := pipeline.NewRegistry()
	acquire := func(ctx context.Context, ref string, rep progress.Reporter) (pipeline.AcquireResult, error) {
		c, err := pipeline.New(append(opts[:len(opts):len(opts)], pipeline.WithReporter(rep), pipeline.WithRegistry(registry))...)
		if err != nil {
			return pipeline.AcquireResult{}, err
		}
		return c.Acquire(ctx, ref)
	}
	return ui.Run(ctx, refs, s.Jobs, s.Verbose, acquire)
}

type loadLine struct {
	Reference string                  `json:"reference"`
	OK        bool                    `json:"ok"`
	Result    *pipeline.AcquireResult `json:"result,omitempty"`
	ErrorKind model.ErrorKind         `json:"errorKind,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// reportOutcomes prints one line per reference and returns the exit error
// of the first failure.
func reportOutcomes(w io.Writer, outcomes []ui.Outcome, asJSON bool) error {
	var firstErr error
	failed := 0
	enc := json.NewEncoder(w)
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
			log := logger()
			log.Error().Str("reference", o.Reference).Str("error_kind", string(model.KindOf(o.Err))).Err(o.Err).Msg("load failed")
		}
		if asJSON {
			line := loadLine{Reference: o.Reference, OK: o.Err == nil}
			if o.Err != nil {
				line.ErrorKind, line.Message = model.KindOf(o.Err), o.Err.Error()
			} else {
				res := o.Result
				line.Result = &res
			}
			if err := enc.Encode(line); err != nil {
				return err
			}
			continue
		}
		if o.Err == nil {
			fmt.Fprintf(w, "%s\t%dx%d\t%s\n", o.Result.CanonicalMediaPath, o.Result.Width, o.Result.Height, o.Reference)
		}
	}
	if firstErr != nil {
		return exitFor(fmt.Errorf("%d of %d references failed: %w", failed, len(outcomes), firstErr))
	}
	return nil
}
