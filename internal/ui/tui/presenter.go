package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bamsammich/shelfscan/internal/config"
	"github.com/bamsammich/shelfscan/internal/event"
	"github.com/bamsammich/shelfscan/internal/ui"
)

// Presenter runs the full-screen UI as a ui.Presenter.
type Presenter struct {
	cfg Config
}

var _ ui.Presenter = (*Presenter)(nil)

// NewPresenter applies theme and returns a presenter for cfg.
func NewPresenter(cfg Config, theme config.ThemeConfig) *Presenter {
	ApplyTheme(theme)
	return &Presenter{cfg: cfg}
}

// Run blocks until the user quits. The UI draws on stderr so that stdout
// stays free for redirected output.
func (p *Presenter) Run(events <-chan event.Event) error {
	opts := []tea.ProgramOption{
		tea.WithAltScreen(),
		// Signals are handled by the caller's context.
		tea.WithoutSignalHandler(),
	}
	if p.cfg.Input != nil {
		opts = append(opts, tea.WithInput(p.cfg.Input))
	}
	out := p.cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts = append(opts, tea.WithOutput(out))

	final, err := tea.NewProgram(NewModel(events, p.cfg), opts...).Run()
	if err != nil {
		return err
	}
	if _, ok := final.(Model); !ok {
		return fmt.Errorf("tui: unexpected final model %T", final)
	}
	return nil
}

// Summary returns the completion line from the shared counters.
func (p *Presenter) Summary() string {
	return ui.CompletionSummary(p.cfg.Stats.Snapshot())
}
