package encoder

import (
	"math"
	"strconv"
	"strings"

	"captionclip/internal/model"
)

// FontScaleCorrection compensates for the preview's font metrics rendering
// slightly smaller than drawtext's rasterizer.
const FontScaleCorrection = 1.05

// DefaultCenteredFontSize is used by the single centered caption.
const DefaultCenteredFontSize = 48

// EscapeText prepares caption text for a drawtext "text" option.
// Backslashes go first so later escapes are not doubled; quotes cannot be
// escaped reliably and are dropped. The result is option-level only;
// model.FilterOperation adds the filtergraph level when rendered.
func EscapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `,`, `\,`)
	return strings.ReplaceAll(s, `'`, "")
}

// FormatNumber prints v as a plain decimal rounded to 3 places.
func FormatNumber(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// Style is the fixed caption look plus the typeface name.
type Style struct {
	Font string
}

func (s Style) params(text, fontsize, x, y string) []model.Param {
	ps := []model.Param{{Key: "text", Value: text}, {Key: "expansion", Value: "none"}}
	if s.Font != "" {
		ps = append(ps, model.Param{Key: "font", Value: EscapeText(s.Font)})
	}
	return append(ps,
		model.Param{Key: "fontsize", Value: fontsize},
		model.Param{Key: "fontcolor", Value: "white"},
		model.Param{Key: "x", Value: x},
		model.Param{Key: "y", Value: y},
		model.Param{Key: "shadowcolor", Value: "black"},
		model.Param{Key: "shadowx", Value: "2"},
		model.Param{Key: "shadowy", Value: "2"},
	)
}

// CaptionFilter maps one display-space caption into a drawtext operation in
// intrinsic pixel space.
func CaptionFilter(g model.RenderGeometry, c model.CaptionSpec, style Style) model.FilterOperation {
	return model.FilterOperation{
		Name: "drawtext",
		Params: style.params(
			EscapeText(c.Text),
			FormatNumber(c.FontSize*g.Scale*FontScaleCorrection),
			FormatNumber(c.X*g.Scale),
			FormatNumber(c.Y*g.Scale),
		),
	}
}

// CaptionFilters builds one drawtext per caption, preserving order so later
// captions paint over earlier ones.
func CaptionFilters(g model.RenderGeometry, captions []model.CaptionSpec, style Style) []model.FilterOperation {
	ops := make([]model.FilterOperation, 0, len(captions))
	for _, c := range captions {
		ops = append(ops, CaptionFilter(g, c, style))
	}
	return ops
}

// CenteredCaptionFilter draws a single caption centered in the frame.
// fontSize <= 0 selects DefaultCenteredFontSize.
func CenteredCaptionFilter(text string, fontSize float64, style Style) model.FilterOperation {
	if fontSize <= 0 {
		fontSize = DefaultCenteredFontSize
	}
	return model.FilterOperation{
		Name:   "drawtext",
		Params: style.params(EscapeText(text), FormatNumber(fontSize), "(w-text_w)/2", "(h-text_h)/2"),
	}
}
