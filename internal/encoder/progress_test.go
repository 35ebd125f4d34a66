package encoder

import (
	"testing"

	"captionclip/internal/progress"
)

func TestProgressState_UpdateFromLine(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		durationSec float64
		wantOk      bool
		wantPercent float64
		wantMessage string
	}{
		{
			name: "known duration",
			lines: []string{
				"out_time_ms=3000000",
				"speed=1.5x",
				"total_size=10485760",
				"progress=continue",
			},
			durationSec: 6,
			wantOk:      true,
			wantPercent: 50,
			wantMessage: "00:00:03.0",
		},
		{
			name: "unknown duration keeps coarse timestamp only",
			lines: []string{
				"out_time_us=1250000",
				"progress=continue",
			},
			wantOk:      true,
			wantPercent: -1,
			wantMessage: "00:00:01.2",
		},
		{
			name: "end marker is complete",
			lines: []string{
				"out_time_ms=500000",
				"progress=end",
			},
			wantOk:      true,
			wantPercent: 100,
			wantMessage: "00:00:00.5",
		},
		{
			name:        "non-progress line",
			lines:       []string{"frame=100"},
			durationSec: 60,
			wantOk:      false,
		},
		{
			name:   "garbage",
			lines:  []string{"not a key value"},
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &ProgressState{}
			var u progress.Update
			var ok bool
			for _, line := range tt.lines {
				u, ok = ps.UpdateFromLine(line, "job1", progress.StageNormalizing, tt.durationSec)
			}
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !tt.wantOk {
				return
			}
			if u.JobID != "job1" || u.Stage != progress.StageNormalizing {
				t.Errorf("update = %+v", u)
			}
			if u.Percent != tt.wantPercent {
				t.Errorf("Percent = %v, want %v", u.Percent, tt.wantPercent)
			}
			if u.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", u.Message, tt.wantMessage)
			}
		})
	}
}

func TestProgressState_StateTracking(t *testing.T) {
	ps := &ProgressState{}
	ps.UpdateFromLine("out_time_ms=15000000", "job1", progress.StageCompositing, 0)
	if ps.OutTimeUs != 15000000 {
		t.Errorf("OutTimeUs = %v, want 15000000", ps.OutTimeUs)
	}
	ps.UpdateFromLine("speed=1.2x", "job1", progress.StageCompositing, 0)
	ps.UpdateFromLine("speed=N/A", "job1", progress.StageCompositing, 0)
	if ps.SpeedStr != "1.2x" {
		t.Errorf("SpeedStr = %v, want '1.2x'", ps.SpeedStr)
	}
	u, ok := ps.UpdateFromLine("progress=continue", "job1", progress.StageCompositing, 0)
	if !ok || u.Speed == nil || *u.Speed != "1.2x" {
		t.Fatalf("update = %+v, ok=%v", u, ok)
	}
}
