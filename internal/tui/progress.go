package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/vilma/internal/couple"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

type stepMsg struct {
	step  couple.Step
	state couple.StepState
	err   error
}

type finishedMsg struct {
	err error
}

// StepMsg wraps an adapter step notification for the program.
func StepMsg(step couple.Step, state couple.StepState, err error) tea.Msg {
	return stepMsg{step: step, state: state, err: err}
}

// FinishedMsg tells the view the exchange returned.
func FinishedMsg(err error) tea.Msg {
	return finishedMsg{err: err}
}

// Progress renders the steps of one coupling exchange.
type Progress struct {
	title    string
	steps    []couple.Step
	states   map[couple.Step]couple.StepState
	spinner  spinner.Model
	finished bool
	aborted  bool
	err      error
}

// NewProgress returns a view over steps.
func NewProgress(title string, steps []couple.Step) *Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return &Progress{
		title:   title,
		steps:   append([]couple.Step(nil), steps...),
		states:  map[couple.Step]couple.StepState{},
		spinner: s,
	}
}

// Init implements tea.Model.
func (p *Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update implements tea.Model.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			p.aborted = true
			return p, tea.Quit
		}
	case stepMsg:
		p.states[msg.step] = msg.state
		if msg.err != nil {
			p.err = msg.err
		}
	case finishedMsg:
		p.finished = true
		if msg.err != nil {
			p.err = msg.err
		}
		return p, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

// View implements tea.Model.
func (p *Progress) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.title))
	b.WriteString("\n\n")
	for _, step := range p.steps {
		b.WriteString("  ")
		b.WriteString(p.marker(p.states[step]))
		b.WriteString(" ")
		b.WriteString(string(step))
		b.WriteString("\n")
	}
	switch {
	case p.err != nil:
		b.WriteString("\n")
		b.WriteString(failedStyle.Render(fmt.Sprintf("failed: %v", p.err)))
		b.WriteString("\n")
	case p.finished:
		b.WriteString("\n")
		b.WriteString(doneStyle.Render("done"))
		b.WriteString("\n")
	case p.aborted:
		b.WriteString("\n")
		b.WriteString(detailStyle.Render("cancelling"))
		b.WriteString("\n")
	}
	return b.String()
}

func (p *Progress) marker(state couple.StepState) string {
	switch state {
	case couple.StepDone:
		return doneStyle.Render("✓")
	case couple.StepFailed:
		return failedStyle.Render("✗")
	case couple.StepStarted:
		return p.spinner.View()
	default:
		return pendingStyle.Render("·")
	}
}

// State returns the last reported state of step.
func (p *Progress) State(step couple.Step) couple.StepState {
	return p.states[step]
}

// Err returns the first failure the view saw.
func (p *Progress) Err() error {
	return p.err
}

// Finished reports whether the exchange returned.
func (p *Progress) Finished() bool {
	return p.finished
}

// Run shows the view while exchange runs. exchange receives a context
// that is cancelled when the user presses ctrl+c, and an observer to hand
// to the adapter. The exchange's error is returned.
func Run(ctx context.Context, title string, steps []couple.Step, exchange func(context.Context, couple.Observer) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	view := NewProgress(title, steps)
	program := tea.NewProgram(view, opts...)
	result := make(chan error, 1)
	go func() {
		err := exchange(ctx, func(step couple.Step, state couple.StepState, err error) {
			program.Send(StepMsg(step, state, err))
		})
		result <- err
		program.Send(FinishedMsg(err))
	}()
	_, runErr := program.Run()
	if runErr != nil || view.aborted {
		cancel()
	}
	err := <-result
	if runErr != nil && err == nil {
		return fmt.Errorf("tui: %w", runErr)
	}
	return err
}
