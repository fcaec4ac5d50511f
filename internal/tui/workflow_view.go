// Package tui shows live workflow progress while a run executes.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/thunder-muscle/internal/report"
	"github.com/kingrea/thunder-muscle/internal/workflow"
	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

var (
	labelStyleRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStylePending = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	titleStyle        = lipgloss.NewStyle().Bold(true)
)

const statusRunning = "running"

type stepRow struct {
	id     string
	name   string
	tool   string
	status string
	result *executor.StepResult
}

type runStartedMsg struct {
	runID string
	plan  resolver.Plan
}

type stepStartedMsg struct {
	index int
}

type stepFinishedMsg struct {
	index  int
	result executor.StepResult
}

type runFinishedMsg struct {
	report runner.Report
	err    error
}

// Model renders one workflow run.
type Model struct {
	workflow  string
	runID     string
	steps     []stepRow
	spinner   spinner.Model
	done      bool
	cancelled bool
	err       error
	report    *runner.Report
	cancel    context.CancelFunc
}

// NewModel builds the progress model. cancel, when set, is called if the
// user quits before the run finishes.
func NewModel(workflowName string, cancel context.CancelFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = labelStyleRunning
	return Model{workflow: workflowName, spinner: sp, cancel: cancel}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runStartedMsg:
		m.runID = msg.runID
		m.steps = make([]stepRow, 0, len(msg.plan.Steps))
		for _, step := range msg.plan.Steps {
			m.steps = append(m.steps, stepRow{
				id:     step.Step.ID,
				name:   step.Step.DisplayName(),
				tool:   step.Tool.Descriptor().QualifiedName(),
				status: "pending",
			})
		}
		return m, nil
	case stepStartedMsg:
		if msg.index >= 0 && msg.index < len(m.steps) {
			m.steps[msg.index].status = statusRunning
		}
		return m, nil
	case stepFinishedMsg:
		if msg.index >= 0 && msg.index < len(m.steps) {
			result := msg.result
			m.steps[msg.index].status = string(result.Status)
			m.steps[msg.index].result = &result
		}
		return m, nil
	case runFinishedMsg:
		m.done = true
		m.err = msg.err
		rep := msg.report
		m.report = &rep
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done {
				m.cancelled = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	title := titleStyle.Render("Workflow: " + m.workflow)
	if m.runID != "" {
		title += detailTextStyle.Render(" run " + m.runID)
	}
	lines := []string{title, ""}
	if len(m.steps) == 0 && !m.done {
		lines = append(lines, m.spinner.View()+" Resolving workflow…")
	}
	total := len(m.steps)
	for idx, row := range m.steps {
		switch {
		case row.result != nil:
			lines = append(lines, report.StepLine(idx, total, *row.result))
			lines = append(lines, report.StepDetails(*row.result)...)
		case row.status == statusRunning:
			lines = append(lines, fmt.Sprintf("%s Step %d/%d: %s [%s] %s", m.spinner.View(), idx+1, total, row.name, row.tool, labelStyleRunning.Render(statusRunning)))
		default:
			lines = append(lines, labelStylePending.Render(fmt.Sprintf("  Step %d/%d: %s [%s] pending", idx+1, total, row.name, row.tool)))
		}
	}
	lines = append(lines, "")
	switch {
	case m.err != nil && m.report != nil && len(m.report.Steps) == 0:
		lines = append(lines, report.StatusStyle(string(executor.StatusFailure)).Render("Workflow error: "+m.err.Error()))
	case m.report != nil:
		lines = append(lines, report.Summary(*m.report))
	case m.cancelled:
		lines = append(lines, "Cancelling after the current step…")
	default:
		lines = append(lines, detailTextStyle.Render("q=cancel"))
	}
	return strings.Join(lines, "\n") + "\n"
}

// Observer forwards runner progress to a running program.
type Observer struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewObserver returns an observer that is inert until Run attaches it.
func NewObserver() *Observer { return &Observer{} }

func (o *Observer) send(msg tea.Msg) {
	o.mu.Lock()
	p := o.program
	o.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (o *Observer) attach(p *tea.Program) {
	o.mu.Lock()
	o.program = p
	o.mu.Unlock()
}

func (o *Observer) RunStarted(runID string, plan resolver.Plan) {
	o.send(runStartedMsg{runID: runID, plan: plan})
}

func (o *Observer) StepStarted(index, _ int, _ resolver.BoundStep) {
	o.send(stepStartedMsg{index: index})
}

func (o *Observer) StepFinished(index, _ int, result executor.StepResult) {
	o.send(stepFinishedMsg{index: index, result: result})
}

func (o *Observer) RunFinished(runner.Report) {}

// Run executes doc with r while rendering progress to out. r must have been
// built with obs as one of its observers.
func Run(ctx context.Context, r *runner.Runner, obs *Observer, doc workflow.Document, in io.Reader, out io.Writer) (runner.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	name := doc.Name
	if name == "" {
		name = "unnamed"
	}
	opts := []tea.ProgramOption{tea.WithOutput(out), tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	program := tea.NewProgram(NewModel(name, cancel), opts...)
	obs.attach(program)
	defer obs.attach(nil)

	var (
		rep    runner.Report
		runErr error
		wg     sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		rep, runErr = r.Run(runCtx, doc)
		program.Send(runFinishedMsg{report: rep, err: runErr})
	}()
	_, progErr := program.Run()
	if progErr != nil {
		cancel()
	}
	wg.Wait()
	if progErr != nil && runErr == nil {
		return rep, fmt.Errorf("tui: %w", progErr)
	}
	return rep, runErr
}
