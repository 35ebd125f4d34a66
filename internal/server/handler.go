package server

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"captionclip/internal/pipeline"
)

// AcquireRequest is the body of POST /api/acquire.
type AcquireRequest struct {
	Reference string `json:"reference" validate:"required"`
}

// ExportRequest is the body of POST /api/export.
type ExportRequest struct {
	MediaPath string `json:"mediaPath" validate:"required"`
}

// AcquireResponse wraps a successful acquisition.
type AcquireResponse struct {
	OK bool `json:"ok"`
	pipeline.AcquireResult
}

// RenderResponse wraps a successful render.
type RenderResponse struct {
	OK bool `json:"ok"`
	pipeline.RenderResult
}

// JobResponse wraps a job snapshot.
type JobResponse struct {
	OK  bool              `json:"ok"`
	Job pipeline.Snapshot `json:"job"`
}

// JobsResponse lists every remembered job, oldest first.
type JobsResponse struct {
	OK   bool                `json:"ok"`
	Jobs []pipeline.Snapshot `json:"jobs"`
}

type Handler struct {
	coord     *pipeline.Coordinator
	validator *validator.Validate
	health    Health
}

func NewHandler(coord *pipeline.Coordinator, v *validator.Validate, health Health) *Handler {
	return &Handler{coord: coord, validator: v, health: health}
}

// Acquire handles POST /api/acquire. It blocks until the canonical media
// exists or the job fails.
func (h *Handler) Acquire(c *fiber.Ctx) error {
	var req AcquireRequest
	if err := c.BodyParser(&req); err != nil {
		return invalid(c, "invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return invalid(c, "reference is required")
	}
	res, err := h.coord.Acquire(c.UserContext(), strings.TrimSpace(req.Reference))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, AcquireResponse{OK: true, AcquireResult: res})
}

// Render handles POST /api/render.
func (h *Handler) Render(c *fiber.Ctx) error {
	var req pipeline.RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return invalid(c, "invalid request body")
	}
	res, err := h.coord.Render(c.UserContext(), req)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, RenderResponse{OK: true, RenderResult: res})
}

// Export handles POST /api/export. The GIF bytes are the response body and
// the file is released once they have been read.
func (h *Handler) Export(c *fiber.Ctx) error {
	var req ExportRequest
	if err := c.BodyParser(&req); err != nil {
		return invalid(c, "invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return invalid(c, "mediaPath is required")
	}
	gif, err := h.coord.Export(c.UserContext(), req.MediaPath)
	if err != nil {
		return failErr(c, err)
	}
	defer gif.Release()

	data, err := gif.Bytes()
	if err != nil {
		return failErr(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/gif")
	c.Set("X-Job-Id", gif.JobID)
	return c.Send(data)
}

// Jobs handles GET /api/jobs.
func (h *Handler) Jobs(c *fiber.Ctx) error {
	return ok(c, fiber.StatusOK, JobsResponse{OK: true, Jobs: h.coord.Jobs().List()})
}

// Job handles GET /api/jobs/:id.
func (h *Handler) Job(c *fiber.Ctx) error {
	snap, err := h.coord.Jobs().Get(c.Params("id"))
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusOK, JobResponse{OK: true, Job: snap})
}

// Cancel handles POST /api/jobs/:id/cancel.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.coord.Jobs().Cancel(id); err != nil {
		return failErr(c, err)
	}
	snap, err := h.coord.Jobs().Get(id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, fiber.StatusAccepted, JobResponse{OK: true, Job: snap})
}

// Health handles GET /healthz.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok":        true,
		"ffmpeg":    h.health.FFmpeg,
		"ffprobe":   h.health.FFprobe,
		"workspace": h.coord.Workspace().Dir,
	})
}
