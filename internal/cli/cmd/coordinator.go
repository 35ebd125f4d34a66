package cmd

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"captionclip/internal/config"
	"captionclip/internal/encoder"
	"captionclip/internal/pipeline"
	"captionclip/internal/probe"
	"captionclip/internal/progress"
	"captionclip/internal/resolver"
	"captionclip/internal/util"
	"captionclip/internal/util/deps"
)

// toolchain is the resolved engine setup shared by commands.
type toolchain struct {
	FFmpeg  string
	FFprobe string // empty when ffprobe is unavailable
}

// findToolchain locates ffmpeg (required) and ffprobe (optional).
func findToolchain(s config.Settings) (toolchain, error) {
	ff, err := deps.FindFFmpeg(s.FFmpeg)
	if err != nil {
		return toolchain{}, &ExitError{Code: ExitMissingDep, Err: err}
	}
	tc := toolchain{FFmpeg: ff}
	if fp, err := deps.FindFFprobe(s.FFprobe); err == nil {
		tc.FFprobe = fp
	} else {
		log.Warn().Err(err).Msg("ffprobe not found; intrinsic width must be given explicitly")
	}
	return tc, nil
}

// coordinatorOptions builds everything but the reporter from settings.
func coordinatorOptions(s config.Settings, tc toolchain) ([]pipeline.Option, error) {
	ws, err := util.OpenWorkspace(s.WorkDir)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}
	base := log.Logger
	runner := util.NewDefaultRunner()
	opts := []pipeline.Option{
		pipeline.WithWorkspace(ws),
		pipeline.WithEngine(encoder.NewFFmpeg(tc.FFmpeg, runner, base)),
		pipeline.WithLogger(base),
		pipeline.WithFont(s.Font),
		pipeline.WithTimeouts(pipeline.Timeouts{Fetch: s.FetchTimeout, Engine: s.EngineTimeout}),
		pipeline.WithResolver(resolver.New(
			resolver.WithHTTPClient(http.DefaultClient),
			resolver.WithIndirectionHosts(s.IndirectionHosts),
			resolver.WithLogger(base),
		)),
	}
	if tc.FFprobe != "" {
		opts = append(opts, pipeline.WithProber(probe.NewFFprobe(tc.FFprobe, runner)))
	}
	return opts, nil
}

func newCoordinator(s config.Settings, tc toolchain, rep progress.Reporter, extra ...pipeline.Option) (*pipeline.Coordinator, error) {
	opts, err := coordinatorOptions(s, tc)
	if err != nil {
		return nil, err
	}
	opts = append(opts, pipeline.WithReporter(rep))
	opts = append(opts, extra...)
	c, err := pipeline.New(opts...)
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: err}
	}
	return c, nil
}

// logReporter turns stage changes into debug log lines for non-UI runs.
type logReporter struct {
	log zerolog.Logger
}

func (r logReporter) Update(u progress.Update) {
	if u.Percent >= 0 {
		return
	}
	r.log.Debug().Str("job_id", u.JobID).Str("stage", string(u.Stage)).Msg(u.Message)
}

func (r logReporter) Log(l progress.Log) {
	r.log.Debug().Str("job_id", l.JobID).Msg(l.Line)
}

func (logReporter) Result(progress.Result) {}
