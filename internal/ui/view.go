package ui

import (
	"fmt"
	"strings"

	"captionclip/internal/progress"
	"captionclip/internal/util/format"
)

func (m *Model) viewHeader() string {
	done := 0
	for _, js := range m.jobs {
		if js.done {
			done++
		}
	}
	title := m.styles.Title.Render("captionclip: load media")
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Jobs: %d/%d done | q: quit", done, len(m.jobs)))
	return title + "\n" + sub
}

func (m *Model) viewJobs() string {
	var b strings.Builder
	for _, js := range m.jobs {
		b.WriteString(m.viewJob(js))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) stageStyle(s progress.Stage) func(...string) string {
	switch s {
	case progress.StageResolving:
		return m.styles.StageResolve.Render
	case progress.StageFetching:
		return m.styles.StageFetch.Render
	case progress.StageNormalizing, progress.StageCompositing, progress.StageExporting:
		return m.styles.StageEngine.Render
	case progress.StageCompleted:
		return m.styles.Success.Render
	case progress.StageError:
		return m.styles.Error.Render
	}
	return m.styles.JobInfo.Render
}

func (m *Model) viewJob(js *jobState) string {
	left := m.styles.JobTitle.Render(truncate(js.reference, 48))
	stage := m.stageStyle(js.stage)(string(js.stage))

	var right string
	switch {
	case js.percent >= 0 && js.percent <= 100 && !js.done:
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
	case js.done && js.err == nil:
		right = m.styles.Success.Render("✓ ready")
	case js.err != nil:
		right = m.styles.Error.Render("✗ failed")
	case !js.started:
		right = m.styles.Faint.Render("queued")
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("working")
		if js.bytes > 0 {
			right += " " + m.styles.Faint.Render(format.HumanizeBytes(js.bytes))
		}
	}

	lines := []string{left + "  " + stage, right, m.styles.JobInfo.Render(js.status)}
	if m.verbose {
		if l := js.lastLog(); l != "" {
			lines = append(lines, m.styles.Faint.Render(truncate(l, 72)))
		}
	}
	return m.styles.Box.Render(strings.Join(lines, "\n"))
}

func (m *Model) viewSummary() string {
	var ready []string
	for _, js := range m.jobs {
		if js.done && js.err == nil && js.result.CanonicalMediaPath != "" {
			ready = append(ready, js.result.CanonicalMediaPath)
		}
	}
	if len(ready) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Subtitle.Render("Canonical media:"))
	b.WriteString("\n")
	for _, p := range ready {
		b.WriteString(m.styles.Success.Render("  • " + p))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
