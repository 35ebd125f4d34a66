// Package downloader streams direct media URLs into the workspace.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"captionclip/internal/model"
	"captionclip/internal/progress"
	"captionclip/internal/util"
)

// Options controls one fetch.
type Options struct {
	JobID    string
	Reporter progress.Reporter
	// Hint is used for the extension when the URL suffix is not a known
	// media type and the response carries no usable Content-Type.
	Hint *model.MediaKind
}

// Result is a completed (or, alongside an error, partial) download.
type Result struct {
	Path  string
	Kind  model.MediaKind
	Bytes int64
}

// Fetcher downloads direct media URLs.
type Fetcher struct {
	client    *http.Client
	workspace *util.Workspace
	logger    zerolog.Logger
}

// New returns a Fetcher writing into ws. A nil client uses http.DefaultClient.
func New(client *http.Client, ws *util.Workspace, logger zerolog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{
		client:    client,
		workspace: ws,
		logger:    logger.With().Str("component", "downloader").Logger(),
	}
}

// Fetch GETs rawURL and streams the body into a new workspace file.
//
// On a transfer failure the partially written path is returned alongside the
// error so the caller can delete it. A non-2xx status creates no file.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (Result, error) {
	u, ok := util.ParseRemote(rawURL)
	if !ok {
		return Result{}, &model.DownloadError{URL: rawURL, Err: fmt.Errorf("unsupported URL %q", rawURL)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, &model.DownloadError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, &model.DownloadError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &model.DownloadError{URL: rawURL, Status: resp.StatusCode}
	}

	kind, ext := pickExt(util.URLExt(u), resp.Header.Get("Content-Type"), opts.Hint)
	out, err := f.workspace.Create("source", ext)
	if err != nil {
		return Result{}, &model.DownloadError{URL: rawURL, Err: fmt.Errorf("create temp file: %w", err)}
	}
	res := Result{Path: out.Name(), Kind: kind}

	pw := newProgressWriter(opts.JobID, resp.ContentLength, opts.Reporter)
	n, copyErr := io.Copy(io.MultiWriter(out, pw), resp.Body)
	closeErr := out.Close()
	res.Bytes = n
	pw.finish()
	if copyErr != nil {
		return res, &model.DownloadError{URL: rawURL, Err: copyErr}
	}
	if closeErr != nil {
		return res, &model.DownloadError{URL: rawURL, Err: closeErr}
	}

	f.logger.Debug().
		Str("url", rawURL).
		Str("path", res.Path).
		Str("kind", string(kind)).
		Int64("bytes", n).
		Msg("downloaded")
	return res, nil
}

// pickExt chooses the temp file extension: the URL suffix when it names a
// media type, then the Content-Type table, then the hint, then video.
func pickExt(urlExt, contentType string, hint *model.MediaKind) (model.MediaKind, string) {
	if kind, ok := model.DirectKind(urlExt); ok {
		return kind, urlExt
	}
	if kind, ok := model.KindFromContentType(contentType); ok {
		return kind, kind.Ext()
	}
	if hint != nil {
		return *hint, hint.Ext()
	}
	return model.KindVideo, model.KindVideo.Ext()
}

const userAgent = "captionclip/1.0"
