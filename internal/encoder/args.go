package encoder

import (
	"strconv"
	"strings"

	"captionclip/internal/model"
)

const (
	// CanonicalExt is the container every normalized intermediate and render
	// output uses.
	CanonicalExt = ".webm"
	// GIFExt is the export container.
	GIFExt = ".gif"
	// NormalizeFPS pins the frame rate of canonical media and exports.
	NormalizeFPS = 25
)

// Invocation is one engine run: input, filter chain and output.
type Invocation struct {
	InputPath     string
	InputOptions  []string
	Filters       []model.FilterOperation
	OutputFormat  string // "-f" value; empty lets the engine pick from the extension
	OutputFPS     int    // "-r" value; 0 leaves the rate alone
	OutputOptions []string
	OutputPath    string
}

// Codec holds the canonical container's encoder settings.
type Codec struct {
	Video string
	CRF   int
	Audio string
}

// DefaultCodec encodes VP9 + Opus, tuned for speed over size.
var DefaultCodec = Codec{Video: "libvpx-vp9", CRF: 32, Audio: "libopus"}

// Args returns the output options for c. A single video stream is kept and
// the first audio stream passes through unfiltered when present.
func (c Codec) Args() []string {
	if c.Video == "" {
		c.Video = DefaultCodec.Video
	}
	if c.Audio == "" {
		c.Audio = DefaultCodec.Audio
	}
	if c.CRF <= 0 {
		c.CRF = DefaultCodec.CRF
	}
	args := []string{
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", c.Video,
		"-pix_fmt", "yuv420p",
		"-crf", strconv.Itoa(c.CRF),
	}
	if c.Video == "libvpx-vp9" {
		args = append(args, "-b:v", "0", "-deadline", "realtime", "-cpu-used", "8", "-row-mt", "1")
	}
	return append(args, "-c:a", c.Audio)
}

// BuildArgs constructs the ffmpeg argv for inv. The output path is always last.
func BuildArgs(inv Invocation, includeProgress bool) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	args = append(args, inv.InputOptions...)
	args = append(args, "-i", inv.InputPath)
	if len(inv.Filters) > 0 {
		args = append(args, "-vf", FilterGraph(inv.Filters))
	}
	if inv.OutputFPS > 0 {
		args = append(args, "-r", strconv.Itoa(inv.OutputFPS))
	}
	args = append(args, inv.OutputOptions...)
	if inv.OutputFormat != "" {
		args = append(args, "-f", inv.OutputFormat)
	}
	if includeProgress {
		args = append(args, "-progress", "pipe:1", "-nostats")
	}
	return append(args, inv.OutputPath)
}

// FilterGraph joins a linear filter chain.
func FilterGraph(ops []model.FilterOperation) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, ",")
}

// FPSFilter returns fps=<n>.
func FPSFilter(n int) model.FilterOperation {
	return model.FilterOperation{Name: "fps", Params: []model.Param{{Value: strconv.Itoa(n)}}}
}

// PassThroughScale is scale=iw:ih. It pins the output to the source
// dimensions instead of leaving sizing to the muxer defaults.
func PassThroughScale() model.FilterOperation {
	return model.FilterOperation{Name: "scale", Params: []model.Param{{Value: "iw"}, {Value: "ih"}}}
}

// NormalizeInvocation converts a raw source into canonical media. GIF inputs
// are read as a single pass instead of looping.
func NormalizeInvocation(input string, kind model.MediaKind, output string, codec Codec) Invocation {
	inv := Invocation{
		InputPath:     input,
		Filters:       []model.FilterOperation{FPSFilter(NormalizeFPS)},
		OutputOptions: codec.Args(),
		OutputPath:    output,
	}
	if kind == model.KindGif {
		inv.InputOptions = []string{"-ignore_loop", "1"}
	}
	return inv
}

// CompositeInvocation burns filters (usually drawtext) into canonical media.
// An empty filter list re-encodes unchanged.
func CompositeInvocation(input string, filters []model.FilterOperation, output string, codec Codec) Invocation {
	return Invocation{
		InputPath:     input,
		Filters:       filters,
		OutputOptions: codec.Args(),
		OutputPath:    output,
	}
}

// ExportInvocation re-encodes media to GIF at the normalized frame rate and
// the source's own dimensions.
func ExportInvocation(input, output string) Invocation {
	return Invocation{
		InputPath:    input,
		Filters:      []model.FilterOperation{FPSFilter(NormalizeFPS), PassThroughScale()},
		OutputFormat: "gif",
		OutputPath:   output,
	}
}
