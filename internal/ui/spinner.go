// Package ui provides terminal user interface components for bitsmith.
package ui

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// taskDoneMsg is sent when the background task returns.
type taskDoneMsg struct {
	err error
}

// SpinnerModel is the Bubble Tea model showing a spinner while a task runs.
type SpinnerModel struct {
	spinner     spinner.Model
	title       string
	done        bool
	interrupted bool
	err         error
	wait        tea.Cmd
	quit        key.Binding
	titleStyle  lipgloss.Style
}

// NewSpinnerModel creates a spinner model that quits once a value arrives on
// result.
func NewSpinnerModel(title string, result <-chan error) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))

	return SpinnerModel{
		spinner: s,
		title:   title,
		wait: func() tea.Msg {
			return taskDoneMsg{err: <-result}
		},
		quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "interrupt"),
		),
		titleStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Init implements tea.Model.
func (m SpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

// Update implements tea.Model.
func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if key.Matches(msg, m.quit) {
			m.interrupted = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if !m.done {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m SpinnerModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.titleStyle.Render(m.title))
	b.WriteString("\n")
	return b.String()
}

// Done reports whether the task finished, and its error.
func (m SpinnerModel) Done() (bool, error) {
	return m.done, m.err
}

// Interrupted reports whether the user pressed ctrl+c.
func (m SpinnerModel) Interrupted() bool {
	return m.interrupted
}

// SpinnerOptions configures RunWithSpinner.
type SpinnerOptions struct {
	Title string
	// Interactive enables the spinner. Without it the task just runs.
	Interactive bool
	Output      io.Writer
	Input       io.Reader
}

// RunWithSpinner runs fn, showing a spinner on interactive terminals. An
// interrupt from the keyboard cancels the context passed to fn; fn's own
// error is always the one returned.
func RunWithSpinner(ctx context.Context, opts SpinnerOptions, fn func(context.Context) error) error {
	if !opts.Interactive {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- fn(ctx)
	}()

	// Result is read by the model or, if the program stops early, below.
	forward := make(chan error, 1)
	model := NewSpinnerModel(opts.Title, forward)
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	p := tea.NewProgram(model, progOpts...)

	done := make(chan struct{})
	var taskErr error
	go func() {
		defer close(done)
		taskErr = <-result
		forward <- taskErr
	}()

	final, runErr := p.Run()
	if m, ok := final.(SpinnerModel); !ok || !m.done || runErr != nil {
		cancel()
	}
	<-done
	return taskErr
}
