package ui

import (
	"captionclip/internal/pipeline"
	"captionclip/internal/progress"
)

type jobUpdateMsg struct {
	Row int
	U   progress.Update
}

type jobLogMsg struct {
	Row int
	L   progress.Log
}

type jobDoneMsg struct {
	Row    int
	Result pipeline.AcquireResult
	Err    error
}

type allDoneMsg struct{}
