package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/progress"
	"captionclip/internal/util"
)

// RenderRequest asks for captions to be burned into canonical media.
// IntrinsicWidth may be zero when a prober is configured; it is then read
// from the file. CenteredText selects the single centered caption and cannot
// be combined with positioned captions.
type RenderRequest struct {
	CanonicalMediaPath string              `json:"canonicalMediaPath" validate:"required"`
	IntrinsicWidth     int                 `json:"intrinsicWidth" validate:"gte=0"`
	DisplayWidth       int                 `json:"displayWidth" validate:"required,gt=0"`
	Captions           []model.CaptionSpec `json:"captions" validate:"dive"`
	CenteredText       string              `json:"centeredText,omitempty"`
	CenteredFontSize   float64             `json:"centeredFontSize,omitempty" validate:"gte=0"`
}

// RenderResult names the rendered file.
type RenderResult struct {
	JobID      string `json:"jobId"`
	OutputPath string `json:"outputPath"`
}

// Validate checks req's shape without touching the filesystem.
func (c *Coordinator) Validate(req RenderRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return &model.ValidationError{Message: describeValidation(err), Err: err}
	}
	if req.CenteredText != "" && len(req.Captions) > 0 {
		return &model.ValidationError{Message: "centered text cannot be combined with positioned captions"}
	}
	if req.IntrinsicWidth == 0 && c.prober == nil {
		return &model.ValidationError{Message: "intrinsicWidth is required when media probing is unavailable"}
	}
	return nil
}

// Render composites req's captions into a new file beside the canonical
// media. Canonical media inside the workspace is consumed whether the render
// succeeds or fails; files outside it are left alone.
func (c *Coordinator) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if err := c.Validate(req); err != nil {
		return RenderResult{}, err
	}
	job, ctx := c.start(ctx, model.JobRender)
	res := RenderResult{JobID: job.ID}

	if c.workspace.Owns(req.CanonicalMediaPath) {
		job.own(req.CanonicalMediaPath)
	}
	if err := c.advance(job, model.StateCompositing); err != nil {
		return res, c.fail(job, err)
	}

	inv, durationSec, err := c.planRender(ctx, req)
	if err != nil {
		return res, c.fail(job, err)
	}
	job.own(inv.OutputPath)

	ectx, cancel := c.engineContext(ctx)
	defer cancel()
	if err := c.engine.Run(ectx, inv, c.observer(job, progress.StageCompositing, durationSec)); err != nil {
		return res, c.fail(job, &model.RenderError{Message: engineMessage(err), Err: err})
	}

	res.OutputPath = inv.OutputPath
	c.succeed(job, inv.OutputPath)
	return res, nil
}

// PlanRender returns the engine invocation Render would run, without
// running it or creating a job.
func (c *Coordinator) PlanRender(ctx context.Context, req RenderRequest) (encoder.Invocation, error) {
	if err := c.Validate(req); err != nil {
		return encoder.Invocation{}, err
	}
	inv, _, err := c.planRender(ctx, req)
	return inv, err
}

func (c *Coordinator) planRender(ctx context.Context, req RenderRequest) (encoder.Invocation, float64, error) {
	intrinsic := req.IntrinsicWidth
	var durationSec float64
	if c.prober != nil {
		pctx, cancel := c.engineContext(ctx)
		info, err := c.prober.Probe(pctx, req.CanonicalMediaPath)
		cancel()
		switch {
		case err == nil:
			durationSec = info.DurationSec
			if intrinsic == 0 {
				intrinsic = info.Width
			}
		case intrinsic == 0:
			return encoder.Invocation{}, 0, &model.RenderError{Message: fmt.Sprintf("probe %s: %v", req.CanonicalMediaPath, err), Err: err}
		}
	}
	geom, ok := model.NewRenderGeometry(intrinsic, req.DisplayWidth)
	if !ok {
		return encoder.Invocation{}, 0, &model.RenderError{Message: fmt.Sprintf("invalid geometry %d/%d", intrinsic, req.DisplayWidth)}
	}

	var filters []model.FilterOperation
	if req.CenteredText != "" {
		filters = []model.FilterOperation{encoder.CenteredCaptionFilter(req.CenteredText, req.CenteredFontSize, c.style)}
	} else {
		filters = encoder.CaptionFilters(geom, req.Captions, c.style)
	}
	out := util.SiblingPath(filepath.Dir(req.CanonicalMediaPath), "render", encoder.CanonicalExt)
	return encoder.CompositeInvocation(req.CanonicalMediaPath, filters, out, c.codec), durationSec, nil
}

// describeValidation flattens validator errors into one line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
