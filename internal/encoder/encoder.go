package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"captionclip/internal/progress"
	"captionclip/internal/util"
)

// Engine runs one invocation and returns exactly once: nil on success or the
// failure. Cancelling ctx terminates the run.
type Engine interface {
	Run(ctx context.Context, inv Invocation, obs Observer) error
}

// Observer routes progress for one invocation. The zero value reports nothing.
type Observer struct {
	JobID       string
	Stage       progress.Stage
	DurationSec float64 // enables percent when > 0
	Reporter    progress.Reporter
}

// EngineError is a failed engine run. Message is the engine's own last
// diagnostic line.
type EngineError struct {
	Code    int
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ffmpeg exited with code %d", e.Code)
	}
	return e.Message
}

func (e *EngineError) Unwrap() error { return e.Err }

// FFmpeg drives the ffmpeg binary through a CmdRunner.
type FFmpeg struct {
	Path   string
	Runner util.CmdRunner
	Logger zerolog.Logger
}

// NewFFmpeg returns an engine for the binary at path. A nil runner uses os/exec.
func NewFFmpeg(path string, runner util.CmdRunner, logger zerolog.Logger) *FFmpeg {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &FFmpeg{
		Path:   path,
		Runner: runner,
		Logger: logger.With().Str("component", "ffmpeg").Logger(),
	}
}

func (f *FFmpeg) Run(ctx context.Context, inv Invocation, obs Observer) error {
	if f.Path == "" {
		return errors.New("ffmpeg path is required")
	}
	if inv.InputPath == "" || inv.OutputPath == "" {
		return errors.New("input and output paths are required")
	}
	if err := util.EnsureDir(filepath.Dir(inv.OutputPath)); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}

	args := BuildArgs(inv, true)
	f.Logger.Debug().Str("stage", string(obs.Stage)).Strs("args", args).Msg("running ffmpeg")

	var ps ProgressState
	res, err := f.Runner.Run(ctx, util.CmdSpec{
		Path: f.Path,
		Args: args,
		StdoutLine: func(line string) {
			if obs.Reporter == nil {
				return
			}
			if u, ok := ps.UpdateFromLine(line, obs.JobID, obs.Stage, obs.DurationSec); ok {
				obs.Reporter.Update(u)
			}
		},
		StderrLine: func(line string) {
			if obs.Reporter != nil {
				obs.Reporter.Log(progress.Log{JobID: obs.JobID, Stream: progress.StreamStderr, Line: line})
			}
		},
	})
	if err != nil {
		// Partial output must never be mistaken for a result.
		if rmErr := util.RemoveIfExists(inv.OutputPath); rmErr != nil {
			f.Logger.Warn().Err(rmErr).Str("path", inv.OutputPath).Msg("remove partial output")
		}
		msg := lastLine(res.Stderr)
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			msg = "ffmpeg interrupted: " + ctxErr.Error()
		}
		return &EngineError{Code: res.Code, Message: msg, Err: err}
	}
	if _, err := os.Stat(inv.OutputPath); err != nil {
		return &EngineError{Message: "ffmpeg produced no output", Err: err}
	}
	return nil
}

// lastLine returns the final non-empty line of engine stderr.
func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
