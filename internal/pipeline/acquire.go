package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"

	"captionclip/internal/downloader"
	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/progress"
)

// AcquireResult is canonical media ready for captioning.
type AcquireResult struct {
	JobID              string          `json:"jobId"`
	Source             string          `json:"source"` // resolved path or direct URL
	Kind               model.MediaKind `json:"kind"`
	CanonicalMediaPath string          `json:"canonicalMediaPath"`
	Width              int             `json:"width,omitempty"`
	Height             int             `json:"height,omitempty"`
	DurationSec        float64         `json:"durationSec,omitempty"`
}

// Acquire resolves reference, downloads it when remote and normalizes it
// into canonical media. Any stage failure deletes everything the job created
// and returns that stage's error. User files are never deleted.
func (c *Coordinator) Acquire(ctx context.Context, reference string) (AcquireResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return AcquireResult{}, &model.ValidationError{Message: "reference is required"}
	}
	job, ctx := c.start(ctx, model.JobAcquire)
	res := AcquireResult{JobID: job.ID}

	if err := c.advance(job, model.StateResolving); err != nil {
		return res, c.fail(job, err)
	}
	input, source, kind, err := c.locate(ctx, job, reference)
	if err != nil {
		return res, c.fail(job, err)
	}
	res.Source, res.Kind = source, kind

	if err := c.advance(job, model.StateNormalizing); err != nil {
		return res, c.fail(job, err)
	}
	canonical, err := c.normalize(ctx, job, input, kind)
	if err != nil {
		return res, c.fail(job, err)
	}
	res.CanonicalMediaPath = canonical

	if c.prober != nil {
		pctx, cancel := c.engineContext(ctx)
		info, perr := c.prober.Probe(pctx, canonical)
		cancel()
		if perr != nil {
			c.logger.Warn().Err(perr).Str("job_id", job.ID).Str("path", canonical).Msg("probe canonical media")
		} else {
			res.Width, res.Height, res.DurationSec = info.Width, info.Height, info.DurationSec
		}
	}

	c.succeed(job, canonical)
	return res, nil
}

// locate turns reference into a readable local file, downloading it into
// the job's asset set when remote.
func (c *Coordinator) locate(ctx context.Context, job *Job, reference string) (input, source string, kind model.MediaKind, err error) {
	fctx, cancel := c.fetchContext(ctx)
	defer cancel()

	ref, err := c.resolver.Resolve(fctx, reference)
	if err != nil {
		return "", "", "", err
	}
	if !ref.Remote() {
		return ref.Value, ref.Value, ref.Kind, nil
	}

	if err := c.advance(job, model.StateFetching); err != nil {
		return "", "", "", err
	}
	opts := downloader.Options{JobID: job.ID, Reporter: c.reporter}
	if ref.KindKnown {
		k := ref.Kind
		opts.Hint = &k
	}
	fr, err := c.fetcher.Fetch(fctx, ref.Value, opts)
	job.own(fr.Path)
	if err != nil {
		return "", "", "", err
	}
	return fr.Path, ref.Value, fr.Kind, nil
}

// normalize converts input into a canonical workspace file. A downloaded
// input is deleted as soon as the canonical file exists.
func (c *Coordinator) normalize(ctx context.Context, job *Job, input string, kind model.MediaKind) (string, error) {
	if _, err := os.Stat(input); err != nil {
		return "", &model.TranscodeError{Message: fmt.Sprintf("open source: %v", err), Err: err}
	}
	out := c.workspace.NewPath("canonical", encoder.CanonicalExt)
	job.own(out)

	ectx, cancel := c.engineContext(ctx)
	defer cancel()
	inv := encoder.NormalizeInvocation(input, kind, out, c.codec)
	if err := c.engine.Run(ectx, inv, c.observer(job, progress.StageNormalizing, 0)); err != nil {
		return "", &model.TranscodeError{Message: engineMessage(err), Err: err}
	}

	if job.disown(input) {
		if err := os.Remove(input); err != nil && !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Str("job_id", job.ID).Str("path", input).Msg("remove normalized source")
		}
	}
	return out, nil
}
