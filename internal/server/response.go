package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"captionclip/internal/model"
	"captionclip/internal/pipeline"
)

// kindNotFound and kindConflict extend model.ErrorKind for API-only failures.
const (
	kindNotFound model.ErrorKind = "not_found"
	kindConflict model.ErrorKind = "conflict"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	OK        bool            `json:"ok"`
	ErrorKind model.ErrorKind `json:"errorKind"`
	Message   string          `json:"message"`
}

var kindStatus = map[model.ErrorKind]int{
	model.ErrKindInvalidRequest:  fiber.StatusBadRequest,
	model.ErrKindNoMediaURLFound: fiber.StatusUnprocessableEntity,
	model.ErrKindPageFetchFailed: fiber.StatusBadGateway,
	model.ErrKindDownload:        fiber.StatusBadGateway,
	model.ErrKindTranscode:       fiber.StatusUnprocessableEntity,
	model.ErrKindRender:          fiber.StatusInternalServerError,
	model.ErrKindCanceled:        fiber.StatusConflict,
	model.ErrKindTimeout:         fiber.StatusGatewayTimeout,
	model.ErrKindInternal:        fiber.StatusInternalServerError,
	kindNotFound:                 fiber.StatusNotFound,
	kindConflict:                 fiber.StatusConflict,
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind model.ErrorKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

func fail(c *fiber.Ctx, kind model.ErrorKind, message string) error {
	return c.Status(StatusFor(kind)).JSON(ErrorResponse{ErrorKind: kind, Message: message})
}

// failErr classifies err and writes the envelope.
func failErr(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pipeline.ErrJobNotFound):
		return fail(c, kindNotFound, err.Error())
	case errors.Is(err, pipeline.ErrJobFinished):
		return fail(c, kindConflict, err.Error())
	}
	return fail(c, model.KindOf(err), err.Error())
}

func invalid(c *fiber.Ctx, message string) error {
	return fail(c, model.ErrKindInvalidRequest, message)
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(data)
}

// errorHandler renders errors that escape handlers, fiber's own included.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := model.ErrKindInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			kind = kindNotFound
		case fe.Code < 500:
			kind = model.ErrKindInvalidRequest
		}
		return c.Status(fe.Code).JSON(ErrorResponse{ErrorKind: kind, Message: fe.Message})
	}
	return failErr(c, err)
}
