package encoder

import (
	"strconv"
	"strings"
	"time"

	"captionclip/internal/progress"
	"captionclip/internal/util/format"
)

// ProgressState accumulates ffmpeg "-progress" key=value lines. Each
// "progress=" marker closes a block and yields one update.
type ProgressState struct {
	OutTimeUs int64
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine folds one line into the state and returns an update when a
// block completes. Percent stays negative unless durationSec is known.
func (ps *ProgressState) UpdateFromLine(line, jobID string, stage progress.Stage, durationSec float64) (progress.Update, bool) {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return progress.Update{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "out_time_ms", "out_time_us":
		// out_time_ms is microseconds despite its name
		if v, err := strconv.ParseInt(val, 10, 64); err == nil && v >= 0 {
			ps.OutTimeUs = v
		}
	case "speed":
		if val != "N/A" {
			ps.SpeedStr = val
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.TotalSize = v
		}
	case "progress":
		percent := -1.0
		if durationSec > 0 {
			percent = float64(ps.OutTimeUs) / (durationSec * 1e6) * 100
			if percent > 100 {
				percent = 100
			}
		}
		if val == "end" {
			percent = 100
		}
		u := progress.Update{
			JobID:   jobID,
			Stage:   stage,
			Percent: percent,
			Message: format.Clock(time.Duration(ps.OutTimeUs) * time.Microsecond),
		}
		if ps.SpeedStr != "" {
			s := ps.SpeedStr
			u.Speed = &s
		}
		if ps.TotalSize > 0 {
			b := ps.TotalSize
			u.Bytes = &b
		}
		return u, true
	}
	return progress.Update{}, false
}
