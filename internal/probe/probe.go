// Package probe reads stream dimensions and duration with ffprobe.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"captionclip/internal/util"
)

// Info describes the primary video stream of a file.
type Info struct {
	Width       int
	Height      int
	DurationSec float64
	HasAudio    bool
}

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (Info, error)
}

// FFprobe runs the ffprobe binary through a CmdRunner.
type FFprobe struct {
	Path   string
	Runner util.CmdRunner
}

// NewFFprobe returns a prober for the binary at path.
func NewFFprobe(path string, runner util.CmdRunner) *FFprobe {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &FFprobe{Path: path, Runner: runner}
}

func (p *FFprobe) Probe(ctx context.Context, path string) (Info, error) {
	if p.Path == "" {
		return Info{}, errors.New("ffprobe path is required")
	}
	res, err := p.Runner.Run(ctx, util.CmdSpec{
		Path: p.Path,
		Args: []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format", "-show_streams",
			path,
		},
		CaptureStdout: true,
	})
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %q: %w", path, err)
	}
	return ParseJSON(res.Stdout)
}

// ParseJSON converts ffprobe JSON output into Info. Exported for tests that
// have no ffprobe binary.
func ParseJSON(data []byte) (Info, error) {
	var raw struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
		Streams []struct {
			CodecType   string         `json:"codec_type"`
			Width       int            `json:"width"`
			Height      int            `json:"height"`
			Duration    string         `json:"duration"`
			Disposition map[string]int `json:"disposition"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Info{}, fmt.Errorf("parse ffprobe JSON: %w", err)
	}

	var info Info
	found := false
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if found || s.Disposition["attached_pic"] == 1 {
				continue
			}
			found = true
			info.Width, info.Height = s.Width, s.Height
			info.DurationSec = parseFloat(s.Duration)
		case "audio":
			info.HasAudio = true
		}
	}
	if !found {
		return Info{}, errors.New("no video stream")
	}
	if d := parseFloat(raw.Format.Duration); d > 0 {
		info.DurationSec = d
	}
	return info, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
