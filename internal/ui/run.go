package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run acquires references concurrently behind the terminal UI and returns
// one Outcome per reference. Quitting cancels running jobs; Run returns
// after their cleanup has finished.
func Run(ctx context.Context, references []string, workers int, verbose bool, acquire AcquireFunc) ([]Outcome, error) {
	m := NewModel(ctx, references, workers, verbose, acquire)
	prog := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := prog.Run()

	m.cancel()
	m.inflight.closeAndWait()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return m.Outcomes(), err
}
