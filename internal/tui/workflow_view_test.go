package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/workflow"
	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

func testPlan() resolver.Plan {
	stub := tool.Func{Desc: tool.Descriptor{Name: "stats", Category: tool.CategoryAnalyzer}}
	return resolver.Plan{Steps: []resolver.BoundStep{
		{Step: workflow.Step{ID: "a", Name: "Count domains"}, Tool: stub},
		{Step: workflow.Step{ID: "b"}, Tool: stub},
	}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("unexpected model type %T", next)
	}
	return model, cmd
}

func TestModelTracksProgress(t *testing.T) {
	m := NewModel("weekly", nil)
	m, _ = update(t, m, runStartedMsg{runID: "run-1", plan: testPlan()})
	m, _ = update(t, m, stepStartedMsg{index: 0})
	view := m.View()
	if !strings.Contains(view, "Step 1/2: Count domains [analyzer/stats] running") {
		t.Fatalf("expected running step in view:\n%s", view)
	}
	if !strings.Contains(view, "Step 2/2: b [analyzer/stats] pending") {
		t.Fatalf("expected pending step in view:\n%s", view)
	}

	result := executor.StepResult{StepID: "a", Name: "Count domains", Tool: "analyzer/stats", Status: executor.StatusSuccess, Duration: 20 * time.Millisecond}
	m, _ = update(t, m, stepFinishedMsg{index: 0, result: result})
	if m.steps[0].status != string(executor.StatusSuccess) {
		t.Fatalf("expected success status, got %s", m.steps[0].status)
	}

	rep := runner.Report{Workflow: "weekly", Status: runner.StatusSuccess, Steps: []executor.StepResult{result, {StepID: "b", Status: executor.StatusSuccess}}}
	m, cmd := update(t, m, runFinishedMsg{report: rep})
	if cmd == nil || !m.done {
		t.Fatalf("expected quit command after run finished")
	}
	if !strings.Contains(m.View(), "Workflow completed: 2/2 steps successful") {
		t.Fatalf("expected summary in final view:\n%s", m.View())
	}
}

func TestModelQuitCancelsRun(t *testing.T) {
	cancelled := false
	m := NewModel("weekly", func() { cancelled = true })
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled || !m.cancelled || cmd == nil {
		t.Fatalf("expected quit to cancel the run")
	}
	if !strings.Contains(m.View(), "Cancelling") {
		t.Fatalf("expected cancellation notice:\n%s", m.View())
	}
}

func TestModelShowsValidationError(t *testing.T) {
	m := NewModel("broken", nil)
	m, _ = update(t, m, runFinishedMsg{err: errors.New("unknown tool: plot")})
	if !strings.Contains(m.View(), "Workflow error: unknown tool: plot") {
		t.Fatalf("expected error in view:\n%s", m.View())
	}
}

func TestObserverWithoutProgramIsInert(t *testing.T) {
	obs := NewObserver()
	obs.RunStarted("run", testPlan())
	obs.StepStarted(0, 1, resolver.BoundStep{})
	obs.StepFinished(0, 1, executor.StepResult{})
	obs.RunFinished(runner.Report{})
}
