// Package pipeline sequences acquisition, caption rendering and GIF export
// jobs and owns the cleanup of every temporary file they create.
package pipeline

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"captionclip/internal/downloader"
	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/probe"
	"captionclip/internal/progress"
	"captionclip/internal/resolver"
	"captionclip/internal/util"
)

// Timeouts bound the blocking stages. Zero disables a bound.
type Timeouts struct {
	Fetch  time.Duration // page resolution plus download
	Engine time.Duration // each engine invocation
}

// DefaultTimeouts are used when none are configured.
var DefaultTimeouts = Timeouts{Fetch: 2 * time.Minute, Engine: 10 * time.Minute}

// Coordinator runs jobs. It is safe for concurrent use; jobs share nothing
// but the workspace directory.
type Coordinator struct {
	workspace  *util.Workspace
	engine     encoder.Engine
	prober     probe.Prober
	resolver   *resolver.Resolver
	fetcher    *downloader.Fetcher
	httpClient *http.Client
	reporter   progress.Reporter
	logger     zerolog.Logger
	timeouts   Timeouts
	style      encoder.Style
	codec      encoder.Codec
	jobs       *Registry
	validate   *validator.Validate
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkspace sets the managed temp directory.
func WithWorkspace(ws *util.Workspace) Option {
	return func(c *Coordinator) {
		c.workspace = ws
	}
}

// WithEngine sets the transcoding engine.
func WithEngine(e encoder.Engine) Option {
	return func(c *Coordinator) {
		c.engine = e
	}
}

// WithProber sets the media prober. Without one, acquisition reports no
// dimensions and renders must state the intrinsic width.
func WithProber(p probe.Prober) Option {
	return func(c *Coordinator) {
		c.prober = p
	}
}

// WithResolver replaces the default resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(c *Coordinator) {
		c.resolver = r
	}
}

// WithHTTPClient sets the client for the default resolver and fetcher.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = hc
	}
}

// WithReporter attaches a progress reporter. It must tolerate concurrent calls.
func WithReporter(rp progress.Reporter) Option {
	return func(c *Coordinator) {
		c.reporter = rp
	}
}

// WithLogger sets the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithTimeouts overrides DefaultTimeouts.
func WithTimeouts(t Timeouts) Option {
	return func(c *Coordinator) {
		c.timeouts = t
	}
}

// WithFont selects the caption typeface by name.
func WithFont(name string) Option {
	return func(c *Coordinator) {
		c.style.Font = name
	}
}

// WithRegistry shares a job registry between coordinators.
func WithRegistry(r *Registry) Option {
	return func(c *Coordinator) {
		c.jobs = r
	}
}

// New constructs a Coordinator. A workspace and an engine are required.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		logger:   zerolog.Nop(),
		timeouts: DefaultTimeouts,
		codec:    encoder.DefaultCodec,
	}
	for _, o := range opts {
		o(c)
	}
	if c.workspace == nil {
		return nil, errors.New("pipeline: workspace is required")
	}
	if c.engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	c.logger = c.logger.With().Str("component", "pipeline").Logger()
	if c.resolver == nil {
		ropts := []resolver.Option{resolver.WithLogger(c.logger)}
		if c.httpClient != nil {
			ropts = append(ropts, resolver.WithHTTPClient(c.httpClient))
		}
		c.resolver = resolver.New(ropts...)
	}
	if c.fetcher == nil {
		c.fetcher = downloader.New(c.httpClient, c.workspace, c.logger)
	}
	if c.reporter == nil {
		c.reporter = progress.Discard{}
	}
	if c.jobs == nil {
		c.jobs = NewRegistry()
	}
	c.validate = validator.New()
	return c, nil
}

// Jobs exposes the registry for status and cancellation.
func (c *Coordinator) Jobs() *Registry { return c.jobs }

// Workspace returns the managed temp directory.
func (c *Coordinator) Workspace() *util.Workspace { return c.workspace }

// start registers a new job with its own cancelable context.
func (c *Coordinator) start(ctx context.Context, kind model.JobKind) (*Job, context.Context) {
	jctx, cancel := context.WithCancel(ctx)
	job := newJob(kind, cancel)
	c.jobs.add(job)
	c.logger.Debug().Str("job_id", job.ID).Str("kind", string(kind)).Msg("job started")
	c.reporter.Update(progress.Update{JobID: job.ID, Stage: progress.StageDeps, Percent: -1, Message: "Queued"})
	return job, jctx
}

// advance moves job forward and announces the new stage.
func (c *Coordinator) advance(job *Job, to model.JobState) error {
	if err := job.advance(to); err != nil {
		return err
	}
	c.reporter.Update(progress.Update{
		JobID:   job.ID,
		Stage:   progress.StageFor(to),
		Percent: -1,
		Message: stageMessage(to),
	})
	return nil
}

// succeed keeps output and ends the job.
func (c *Coordinator) succeed(job *Job, output string) {
	job.disown(output)
	c.finish(job, output, nil)
}

// fail ends the job and returns err untouched.
func (c *Coordinator) fail(job *Job, err error) error {
	c.finish(job, "", err)
	return err
}

// finish performs the single terminal transition: owned assets are deleted
// and one Result is reported. Later calls are no-ops.
func (c *Coordinator) finish(job *Job, output string, err error) {
	assets, ok := job.terminate(output, err)
	if !ok {
		return
	}
	log := c.logger.With().Str("job_id", job.ID).Str("kind", string(job.Kind)).Logger()
	for _, a := range assets {
		if rmErr := util.RemoveIfExists(a.Path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", a.Path).Str("owner", a.Owner).Msg("remove temp asset")
		}
	}

	res := progress.Result{JobID: job.ID, Kind: job.Kind, OutputPath: output, Err: err}
	if err != nil {
		log.Info().Str("error_kind", string(model.KindOf(err))).Err(err).Msg("job failed")
	} else {
		res.Bytes = fileSize(output)
		log.Info().Str("output", output).Int64("bytes", res.Bytes).Msg("job succeeded")
	}
	c.reporter.Result(res)
}

// engineContext applies the engine timeout.
func (c *Coordinator) engineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeouts.Engine > 0 {
		return context.WithTimeout(ctx, c.timeouts.Engine)
	}
	return context.WithCancel(ctx)
}

// fetchContext applies the fetch timeout.
func (c *Coordinator) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeouts.Fetch > 0 {
		return context.WithTimeout(ctx, c.timeouts.Fetch)
	}
	return context.WithCancel(ctx)
}

func (c *Coordinator) observer(job *Job, stage progress.Stage, durationSec float64) encoder.Observer {
	return encoder.Observer{JobID: job.ID, Stage: stage, DurationSec: durationSec, Reporter: c.reporter}
}

func stageMessage(s model.JobState) string {
	switch s {
	case model.StateResolving:
		return "Resolving source"
	case model.StateFetching:
		return "Downloading"
	case model.StateNormalizing:
		return "Normalizing"
	case model.StateCompositing:
		return "Rendering captions"
	case model.StateExporting:
		return "Exporting GIF"
	}
	return string(s)
}

func fileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

// engineMessage extracts the engine's own diagnostic from err.
func engineMessage(err error) string {
	var ee *encoder.EngineError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	return err.Error()
}
