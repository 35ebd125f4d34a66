package model

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind is the stable, caller-facing name of a failure class.
type ErrorKind string

const (
	ErrKindNoMediaURLFound ErrorKind = "no_media_url_found"
	ErrKindPageFetchFailed ErrorKind = "page_fetch_failed"
	ErrKindDownload        ErrorKind = "download_failed"
	ErrKindTranscode       ErrorKind = "transcode_failed"
	ErrKindRender          ErrorKind = "render_failed"
	ErrKindInvalidRequest  ErrorKind = "invalid_request"
	ErrKindCanceled        ErrorKind = "canceled"
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindInternal        ErrorKind = "internal"
)

// ResolutionReason distinguishes the two ways page resolution fails.
type ResolutionReason string

const (
	NoMediaURLFound ResolutionReason = "no media url found"
	PageFetchFailed ResolutionReason = "page fetch failed"
)

// ResolutionError is returned when an indirection page yields no media URL.
type ResolutionError struct {
	Reason ResolutionReason
	URL    string
	Status int   // HTTP status for PageFetchFailed; 0 when the request never completed
	Err    error // transport cause, if any
}

func (e *ResolutionError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Reason, e.URL, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.URL)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DownloadError carries either a non-success HTTP status or a transfer cause.
type DownloadError struct {
	URL    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// TranscodeError is an engine failure during normalization or export.
type TranscodeError struct {
	Message string
	Err     error
}

func (e *TranscodeError) Error() string { return "transcode failed: " + e.Message }

func (e *TranscodeError) Unwrap() error { return e.Err }

// RenderError is an engine failure while compositing captions.
type RenderError struct {
	Message string
	Err     error
}

func (e *RenderError) Error() string { return "render failed: " + e.Message }

func (e *RenderError) Unwrap() error { return e.Err }

// ValidationError rejects a malformed request before any job work happens.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string { return "invalid request: " + e.Message }

func (e *ValidationError) Unwrap() error { return e.Err }

// KindOf classifies err for result envelopes. Cancellation and deadlines win
// over the stage error they interrupted.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrKindTimeout
	}
	var (
		re *ResolutionError
		de *DownloadError
		te *TranscodeError
		rn *RenderError
		ve *ValidationError
	)
	switch {
	case errors.As(err, &re):
		if re.Reason == PageFetchFailed {
			return ErrKindPageFetchFailed
		}
		return ErrKindNoMediaURLFound
	case errors.As(err, &de):
		return ErrKindDownload
	case errors.As(err, &te):
		return ErrKindTranscode
	case errors.As(err, &rn):
		return ErrKindRender
	case errors.As(err, &ve):
		return ErrKindInvalidRequest
	}
	return ErrKindInternal
}
