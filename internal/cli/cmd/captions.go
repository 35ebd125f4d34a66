package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"captionclip/internal/model"
)

// parseCaption reads "x,y,size,text" in display pixels. The text may
// itself contain commas.
func parseCaption(s string) (model.CaptionSpec, error) {
	parts := strings.SplitN(s, ",", 4)
	if len(parts) != 4 {
		return model.CaptionSpec{}, fmt.Errorf("caption %q: want x,y,size,text", s)
	}
	var nums [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return model.CaptionSpec{}, fmt.Errorf("caption %q: %w", s, err)
		}
		nums[i] = v
	}
	return model.CaptionSpec{Text: parts[3], X: nums[0], Y: nums[1], FontSize: nums[2]}, nil
}

// captionFile is the YAML layout accepted by --captions.
//
//	display_width: 480
//	captions:
//	  - {text: "top", x: 10, y: 20, font_size: 24}
type captionFile struct {
	DisplayWidth int                 `yaml:"display_width"`
	Captions     []model.CaptionSpec `yaml:"captions"`
}

func loadCaptionFile(path string) (captionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return captionFile{}, err
	}
	var cf captionFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return captionFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cf, nil
}
