// Package resolver classifies user media references and follows indirection
// pages (share pages that embed the real media) to a direct media URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/rs/zerolog"

	"captionclip/internal/model"
	"captionclip/internal/util"
)

// DefaultIndirectionHosts are share sites whose pages embed the media.
var DefaultIndirectionHosts = []string{"tenor.com"}

// maxPageBytes caps how much of an indirection page is scanned.
const maxPageBytes = 4 << 20

// pagePatterns are tried in order; the first capture wins. Markup changes
// break these, which surfaces as NoMediaURLFound.
var pagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<div class="Gif".*?<img[^>]*?\ssrc="([^"]+)"`),
	regexp.MustCompile(`(?s)<img class="Gif"[^>]*?\ssrc="([^"]+)"`),
	regexp.MustCompile(`(?s)<video class="Gif"[^>]*?\ssrc="([^"]+)"`),
	regexp.MustCompile(`(?s)<source src="([^"]+)"[^>]*?type="video/mp4"`),
}

// Resolver turns a raw reference into a local path or direct media URL.
type Resolver struct {
	client *http.Client
	hosts  []string
	logger zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for page fetches.
func WithHTTPClient(c *http.Client) Option { return func(r *Resolver) { r.client = c } }

// WithIndirectionHosts replaces the indirection domain list.
func WithIndirectionHosts(hosts []string) Option {
	return func(r *Resolver) {
		if len(hosts) > 0 {
			r.hosts = hosts
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(l zerolog.Logger) Option { return func(r *Resolver) { r.logger = l } }

// New returns a Resolver with defaults applied.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		client: http.DefaultClient,
		hosts:  DefaultIndirectionHosts,
		logger: zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With().Str("component", "resolver").Logger()
	return r
}

// Classify tags raw without touching the network.
func (r *Resolver) Classify(raw string) model.MediaReference {
	u, ok := util.ParseRemote(raw)
	if !ok {
		return model.MediaReference{
			Type:      model.RefLocalPath,
			Value:     raw,
			Kind:      model.KindFromPath(raw),
			KindKnown: true,
		}
	}
	if kind, ok := model.DirectKind(util.URLExt(u)); ok {
		return model.MediaReference{Type: model.RefDirectURL, Value: raw, Kind: kind, KindKnown: true}
	}
	if util.HostMatches(u, r.hosts) {
		return model.MediaReference{Type: model.RefIndirectPage, Value: raw, Kind: model.KindVideo}
	}
	return model.MediaReference{Type: model.RefDirectURL, Value: raw, Kind: model.KindVideo}
}

// Resolve classifies raw and, for an indirection page, performs one GET and
// extracts the embedded media URL. The extracted URL is returned as found;
// its kind comes from its suffix when recognizable.
func (r *Resolver) Resolve(ctx context.Context, raw string) (model.MediaReference, error) {
	ref := r.Classify(raw)
	if ref.Type != model.RefIndirectPage {
		return ref, nil
	}

	body, err := r.fetchPage(ctx, ref.Value)
	if err != nil {
		return model.MediaReference{}, err
	}
	found, ok := ExtractMediaURL(body)
	if !ok {
		r.logger.Debug().Str("url", ref.Value).Int("bytes", len(body)).Msg("no media pattern matched")
		return model.MediaReference{}, &model.ResolutionError{Reason: model.NoMediaURLFound, URL: ref.Value}
	}
	r.logger.Debug().Str("page", ref.Value).Str("media", found).Msg("resolved indirection page")

	out := model.MediaReference{Type: model.RefDirectURL, Value: found, Kind: model.KindVideo}
	if u, ok := util.ParseRemote(found); ok {
		if kind, ok := model.DirectKind(util.URLExt(u)); ok {
			out.Kind, out.KindKnown = kind, true
		}
	}
	return out, nil
}

func (r *Resolver) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &model.ResolutionError{Reason: model.PageFetchFailed, URL: pageURL, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &model.ResolutionError{Reason: model.PageFetchFailed, URL: pageURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.ResolutionError{Reason: model.PageFetchFailed, URL: pageURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &model.ResolutionError{Reason: model.PageFetchFailed, URL: pageURL, Err: fmt.Errorf("read page: %w", err)}
	}
	return body, nil
}

// ExtractMediaURL scans markup with the ordered page patterns.
func ExtractMediaURL(body []byte) (string, bool) {
	for _, re := range pagePatterns {
		if m := re.FindSubmatch(body); m != nil && len(m[1]) > 0 {
			return string(m[1]), true
		}
	}
	return "", false
}

const userAgent = "captionclip/1.0"
