package model

import (
	"mime"
	"path/filepath"
	"strings"
)

// MediaKind distinguishes animated GIF sources from everything else.
type MediaKind string

const (
	KindGif   MediaKind = "gif"
	KindVideo MediaKind = "video"
)

// Ext is the temp file extension used for inputs of this kind.
func (k MediaKind) Ext() string {
	if k == KindGif {
		return ".gif"
	}
	return ".mp4"
}

// KindFromExt maps ".gif" to KindGif and anything else to KindVideo.
func KindFromExt(ext string) MediaKind {
	if strings.EqualFold(ext, ".gif") {
		return KindGif
	}
	return KindVideo
}

// KindFromPath applies KindFromExt to the path's extension.
func KindFromPath(path string) MediaKind {
	return KindFromExt(filepath.Ext(path))
}

// directExts are URL suffixes that name a media file outright.
var directExts = map[string]MediaKind{
	".gif":  KindGif,
	".mp4":  KindVideo,
	".webm": KindVideo,
}

// DirectKind reports the kind for a recognized media file extension.
func DirectKind(ext string) (MediaKind, bool) {
	k, ok := directExts[strings.ToLower(ext)]
	return k, ok
}

var contentTypes = map[string]MediaKind{
	"image/gif":       KindGif,
	"video/mp4":       KindVideo,
	"video/webm":      KindVideo,
	"video/quicktime": KindVideo,
}

// KindFromContentType maps a response Content-Type to a kind. ok is false
// when the type is absent or unknown; callers then default to KindVideo.
func KindFromContentType(ct string) (MediaKind, bool) {
	if ct == "" {
		return KindVideo, false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(ct, ";", 2)[0])
	}
	k, ok := contentTypes[strings.ToLower(mt)]
	if !ok {
		return KindVideo, false
	}
	return k, true
}

// RefType tags a MediaReference.
type RefType string

const (
	RefLocalPath    RefType = "local_path"
	RefDirectURL    RefType = "direct_url"
	RefIndirectPage RefType = "indirect_page"
)

// MediaReference is a classified user reference. KindKnown is false when a
// direct URL carried no recognizable suffix; the fetcher then decides.
type MediaReference struct {
	Type      RefType
	Value     string
	Kind      MediaKind
	KindKnown bool
}

// Remote reports whether the reference must be downloaded.
func (r MediaReference) Remote() bool { return r.Type != RefLocalPath }

// TempAsset is a file in the workspace owned by exactly one job.
type TempAsset struct {
	Path  string `json:"path"`
	Owner string `json:"owner"`
}

// CaptionSpec is one caption as the user placed it on screen.
type CaptionSpec struct {
	Text     string   `json:"text" yaml:"text"`
	X        float64  `json:"xDisplay" yaml:"x"`
	Y        float64  `json:"yDisplay" yaml:"y"`
	FontSize float64  `json:"fontSizeDisplay" yaml:"font_size" validate:"gt=0"`
	Width    *float64 `json:"widthDisplay,omitempty" yaml:"width,omitempty"` // informational only
}

// RenderGeometry relates display space to intrinsic pixel space.
type RenderGeometry struct {
	Scale float64
}

// NewRenderGeometry computes intrinsicWidth/displayWidth. Both must be > 0.
func NewRenderGeometry(intrinsicWidth, displayWidth int) (RenderGeometry, bool) {
	if intrinsicWidth <= 0 || displayWidth <= 0 {
		return RenderGeometry{}, false
	}
	return RenderGeometry{Scale: float64(intrinsicWidth) / float64(displayWidth)}, true
}

// Param is one filter option. An empty Key emits a positional value.
type Param struct {
	Key   string
	Value string
}

// FilterOperation is one node of an ffmpeg filter chain.
type FilterOperation struct {
	Name   string
	Params []Param
}

// String renders the node for a filtergraph. Values are escaped a second
// time for the graph parser, which strips one level of backslashes before
// the filter sees its options.
func (f FilterOperation) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('=')
	for i, p := range f.Params {
		if i > 0 {
			b.WriteByte(':')
		}
		if p.Key != "" {
			b.WriteString(p.Key)
			b.WriteByte('=')
		}
		b.WriteString(graphEscaper.Replace(p.Value))
	}
	return b.String()
}

var graphEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`[`, `\[`,
	`]`, `\]`,
	`,`, `\,`,
	`;`, `\;`,
)

// Param returns the value for key, if present.
func (f FilterOperation) Param(key string) (string, bool) {
	for _, p := range f.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}
