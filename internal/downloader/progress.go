package downloader

import (
	"time"

	"captionclip/internal/progress"
	"captionclip/internal/util/format"
)

// reportEvery throttles byte-count updates.
const reportEvery = 200 * time.Millisecond

// progressWriter counts streamed bytes and reports them as fetch progress.
type progressWriter struct {
	jobID    string
	total    int64 // Content-Length; <= 0 when unknown
	written  int64
	reporter progress.Reporter
	last     time.Time
	now      func() time.Time
}

func newProgressWriter(jobID string, total int64, rep progress.Reporter) *progressWriter {
	return &progressWriter{jobID: jobID, total: total, reporter: rep, now: time.Now}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.reporter != nil {
		if t := p.now(); t.Sub(p.last) >= reportEvery {
			p.last = t
			p.emit()
		}
	}
	return len(b), nil
}

func (p *progressWriter) finish() {
	if p.reporter != nil {
		p.emit()
	}
}

func (p *progressWriter) emit() {
	percent := -1.0
	if p.total > 0 {
		percent = float64(p.written) / float64(p.total) * 100
		if percent > 100 {
			percent = 100
		}
	}
	b := p.written
	p.reporter.Update(progress.Update{
		JobID:   p.jobID,
		Stage:   progress.StageFetching,
		Percent: percent,
		Bytes:   &b,
		Message: "Downloaded " + format.HumanizeBytes(b),
	})
}
