package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"captionclip/internal/config"
	"captionclip/internal/logging"
	"captionclip/internal/model"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitDownloadError  = 3
	ExitTranscodeError = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor maps a pipeline error onto the process exit code.
func exitFor(err error) *ExitError {
	if err == nil {
		return nil
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	switch model.KindOf(err) {
	case model.ErrKindNoMediaURLFound, model.ErrKindPageFetchFailed, model.ErrKindDownload:
		return &ExitError{Code: ExitDownloadError, Err: err}
	case model.ErrKindTranscode, model.ErrKindRender, model.ErrKindTimeout:
		return &ExitError{Code: ExitTranscodeError, Err: err}
	}
	return &ExitError{Code: ExitCLIError, Err: err}
}

type ctxKey string

const settingsKey ctxKey = "settings"

// settingsFrom returns what the root pre-run loaded.
func settingsFrom(cmd *cobra.Command) config.Settings {
	if s, ok := cmd.Context().Value(settingsKey).(config.Settings); ok {
		return s
	}
	return config.Settings{}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "captionclip",
		Short: "Caption GIFs and short clips from the command line",
		Long: "captionclip loads a GIF or short video from a file, a direct URL or a sharing page, " +
			"normalizes it, burns positioned captions into it and exports the result as a GIF.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("work-dir", "", "Directory for temporary media (default $TMPDIR/captionclip)")
	pf.String("ffmpeg", "", "Path to the ffmpeg binary")
	pf.String("ffprobe", "", "Path to the ffprobe binary")
	pf.String("font", "", "Caption font name (default Impact)")
	pf.Duration("fetch-timeout", 0, "Bound on page resolution plus download (default 2m)")
	pf.Duration("engine-timeout", 0, "Bound on each ffmpeg run (default 10m)")
	pf.StringSlice("indirection-host", nil, "Hosts whose pages embed the media (default tenor.com)")
	pf.BoolP("verbose", "v", false, "Debug logging, including ffmpeg command lines")
	pf.Bool("log-json", false, "Log JSON lines instead of console output")
	pf.Int("jobs", 0, "Max concurrent acquisitions (default 2)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if err := config.Init(root); err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		s, err := config.Load()
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		logging.Init(logging.Options{Verbose: s.Verbose, JSON: s.LogJSON})
		cmd.SetContext(context.WithValue(cmd.Context(), settingsKey, s))
		return nil
	}

	root.AddCommand(newLoadCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newPlanCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())
	return root
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// logger returns the global logger tagged for the CLI.
func logger() zerolog.Logger {
	return logging.WithComponent("cli")
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitCLIError, Err: fmt.Errorf(format, args...)}
}
