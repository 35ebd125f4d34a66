// Package ui renders concurrent acquisitions as a bubbletea program.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"captionclip/internal/pipeline"
	"captionclip/internal/progress"
)

// AcquireFunc runs one acquisition, reporting progress to rep.
type AcquireFunc func(ctx context.Context, reference string, rep progress.Reporter) (pipeline.AcquireResult, error)

// Outcome is the final state of one reference.
type Outcome struct {
	Reference string
	Result    pipeline.AcquireResult
	Err       error
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	acquire AcquireFunc
	jobs    []*jobState
	workers int
	running int
	next    int
	verbose bool

	width, height int
	styles        Styles

	eventCh  chan tea.Msg
	inflight *inflight
}

// inflight tracks running acquisitions so Run can wait for their cleanup
// after the program exits. Finished results are kept because the program
// stops reading messages once the user quits.
type inflight struct {
	mu       sync.Mutex
	wg       sync.WaitGroup
	closed   bool
	finished map[int]jobDoneMsg
}

func (f *inflight) enter() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) leave() { f.wg.Done() }

func (f *inflight) record(msg jobDoneMsg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished == nil {
		f.finished = make(map[int]jobDoneMsg)
	}
	f.finished[msg.Row] = msg
}

func (f *inflight) result(row int) (jobDoneMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.finished[row]
	return msg, ok
}

func (f *inflight) closeAndWait() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

// NewModel prepares one row per reference. workers bounds concurrent jobs.
func NewModel(ctx context.Context, references []string, workers int, verbose bool, acquire AcquireFunc) *Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()
	jobs := make([]*jobState, len(references))
	for i, ref := range references {
		jobs[i] = newJobState(i, ref, sty)
	}
	if workers <= 0 {
		workers = 2
	}
	return &Model{
		ctx:      c,
		cancel:   cancel,
		acquire:  acquire,
		jobs:     jobs,
		workers:  workers,
		verbose:  verbose,
		styles:   sty,
		eventCh:  make(chan tea.Msg, 256),
		inflight: &inflight{},
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.jobs)+2)
	for _, js := range m.jobs {
		cmds = append(cmds, js.spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd(), m.schedule())
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Running jobs observe the cancellation and clean up.
			m.cancel()
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case jobUpdateMsg:
		if js := m.job(msg.Row); js != nil && !js.done {
			js.stage = msg.U.Stage
			js.percent = msg.U.Percent
			if msg.U.Message != "" {
				js.status = msg.U.Message
			}
			if msg.U.Bytes != nil {
				js.bytes = *msg.U.Bytes
			}
		}
		return m, m.listenEventsCmd()

	case jobLogMsg:
		if js := m.job(msg.Row); js != nil {
			js.appendLog(strings.TrimRight(msg.L.Line, "\r\n"))
		}
		return m, m.listenEventsCmd()

	case jobDoneMsg:
		if js := m.job(msg.Row); js != nil {
			m.finishRow(js, msg)
		}
		m.running--
		return m, m.schedule()

	case allDoneMsg:
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	for _, js := range m.jobs {
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	out := m.viewHeader() + "\n\n" + m.viewJobs()
	if summary := m.viewSummary(); summary != "" {
		out += "\n" + summary
	}
	return out
}

// Outcomes lists every row in input order. Rows that finished after the
// program quit report their own result; rows never started report the
// context error.
func (m *Model) Outcomes() []Outcome {
	out := make([]Outcome, len(m.jobs))
	for i, js := range m.jobs {
		out[i] = Outcome{Reference: js.reference, Result: js.result, Err: js.err}
		if js.done {
			continue
		}
		if msg, ok := m.inflight.result(js.row); ok {
			out[i].Result, out[i].Err = msg.Result, msg.Err
		} else if out[i].Err == nil {
			out[i].Err = context.Canceled
		}
	}
	return out
}

func (m *Model) job(row int) *jobState {
	if row < 0 || row >= len(m.jobs) {
		return nil
	}
	return m.jobs[row]
}

func (m *Model) finishRow(js *jobState, msg jobDoneMsg) {
	js.done = true
	js.result, js.err = msg.Result, msg.Err
	if msg.Err != nil {
		js.stage = progress.StageError
		js.status = msg.Err.Error()
		js.percent = -1
		return
	}
	js.stage = progress.StageCompleted
	js.percent = 100
	js.status = fmt.Sprintf("Ready: %s", filepath.Base(msg.Result.CanonicalMediaPath))
	if msg.Result.Width > 0 {
		js.status += fmt.Sprintf(" (%dx%d)", msg.Result.Width, msg.Result.Height)
	}
}

// schedule starts queued rows up to the worker limit. It runs inside Update
// so the counters are only touched by the program loop.
func (m *Model) schedule() tea.Cmd {
	if m.ctx.Err() != nil {
		return func() tea.Msg { return allDoneMsg{} }
	}
	var cmds []tea.Cmd
	for m.running < m.workers && m.next < len(m.jobs) {
		js := m.jobs[m.next]
		m.next++
		m.running++
		js.started = true
		cmds = append(cmds, m.runJobCmd(js.row, js.reference))
	}
	if m.next >= len(m.jobs) && m.running == 0 {
		return func() tea.Msg { return allDoneMsg{} }
	}
	return tea.Batch(cmds...)
}

func (m *Model) runJobCmd(row int, reference string) tea.Cmd {
	ctx, acquire, f := m.ctx, m.acquire, m.inflight
	rep := rowReporter{row: row, ch: m.eventCh}
	return func() tea.Msg {
		if !f.enter() {
			return jobDoneMsg{Row: row, Err: context.Canceled}
		}
		defer f.leave()
		res, err := acquire(ctx, reference, rep)
		msg := jobDoneMsg{Row: row, Result: res, Err: err}
		f.record(msg)
		return msg
	}
}

func (m *Model) listenEventsCmd() tea.Cmd {
	ctx, ch := m.ctx, m.eventCh
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			return msg
		}
	}
}
