package pipeline

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"captionclip/internal/encoder"
	"captionclip/internal/model"
	"captionclip/internal/progress"
	"captionclip/internal/util"
)

// ExportedGIF is a GIF waiting to be handed off. It stays on disk until
// Release, which callers invoke once the bytes have been consumed.
type ExportedGIF struct {
	JobID string
	Path  string

	once   sync.Once
	logger zerolog.Logger
}

// WriteTo copies the GIF to w.
func (g *ExportedGIF) WriteTo(w io.Writer) (int64, error) {
	f, err := os.Open(g.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}

// Bytes reads the whole GIF.
func (g *ExportedGIF) Bytes() ([]byte, error) {
	return os.ReadFile(g.Path)
}

// Release deletes the GIF. Repeat calls do nothing; failures are logged.
func (g *ExportedGIF) Release() {
	g.once.Do(func() {
		if err := util.RemoveIfExists(g.Path); err != nil {
			g.logger.Warn().Err(err).Str("path", g.Path).Msg("remove exported gif")
		}
	})
}

// Export re-encodes mediaPath to a GIF at the normalized frame rate and the
// source's dimensions. mediaPath itself is not modified.
func (c *Coordinator) Export(ctx context.Context, mediaPath string) (*ExportedGIF, error) {
	mediaPath = strings.TrimSpace(mediaPath)
	if mediaPath == "" {
		return nil, &model.ValidationError{Message: "mediaPath is required"}
	}
	job, ctx := c.start(ctx, model.JobExport)
	if err := c.advance(job, model.StateExporting); err != nil {
		return nil, c.fail(job, err)
	}
	if _, err := os.Stat(mediaPath); err != nil {
		return nil, c.fail(job, &model.TranscodeError{Message: "open media: " + err.Error(), Err: err})
	}

	out := c.workspace.NewPath("export", encoder.GIFExt)
	job.own(out)
	ectx, cancel := c.engineContext(ctx)
	defer cancel()
	if err := c.engine.Run(ectx, encoder.ExportInvocation(mediaPath, out), c.observer(job, progress.StageExporting, 0)); err != nil {
		return nil, c.fail(job, &model.TranscodeError{Message: engineMessage(err), Err: err})
	}

	c.succeed(job, out)
	return &ExportedGIF{JobID: job.ID, Path: out, logger: c.logger}, nil
}
