package format

import (
	"fmt"
	"strconv"
	"time"
)

// HumanizeBytes converts a byte count into a human-readable string ("1.5 MB").
func HumanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	frac := float64(b) / float64(div)
	return strconv.FormatFloat(frac, 'f', 1, 64) + " " + []string{"KB", "MB", "GB", "TB"}[exp]
}

// Clock renders a media position as HH:MM:SS.t, the coarse timestamp shown
// while the engine runs.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	tenths := int64(d / (100 * time.Millisecond))
	h := tenths / 36000
	m := (tenths / 600) % 60
	s := (tenths / 10) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%d", h, m, s, tenths%10)
}
