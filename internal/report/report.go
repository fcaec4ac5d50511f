// Package report renders run reports for the terminal and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

// Output formats accepted by Write.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	statusStyleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	statusStyleFailure = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	statusStyleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	headerStyle        = lipgloss.NewStyle().Bold(true)
	detailTextStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
)

// StatusStyle returns the style used for a step or run status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case string(executor.StatusSuccess):
		return statusStyleSuccess
	case string(executor.StatusFailure):
		return statusStyleFailure
	default:
		return statusStyleSkipped
	}
}

// StepLine renders the one-line summary of a finished step.
func StepLine(index, total int, result executor.StepResult) string {
	name := result.StepID
	if result.Name != "" && result.Name != result.StepID {
		name = fmt.Sprintf("%s (%s)", result.Name, result.StepID)
	}
	line := fmt.Sprintf("Step %d/%d: %s [%s] %s", index+1, total, name, result.Tool,
		StatusStyle(string(result.Status)).Render(string(result.Status)))
	if result.Status != executor.StatusSkipped {
		line += " " + FormatDuration(result.Duration)
	}
	if result.Optional {
		line += " " + detailTextStyle.Render("(optional)")
	}
	return line
}

// StepDetails renders the indented lines shown under a step.
func StepDetails(result executor.StepResult) []string {
	var lines []string
	switch result.Status {
	case executor.StatusFailure:
		lines = append(lines, "  error: "+result.Error)
		for _, diag := range strings.Split(result.Diagnostic, "\n") {
			if strings.TrimSpace(diag) != "" {
				lines = append(lines, detailTextStyle.Render("  | "+diag))
			}
		}
	case executor.StatusSkipped:
		if result.Message != "" {
			lines = append(lines, detailTextStyle.Render("  "+result.Message))
		}
	default:
		if result.Message != "" {
			lines = append(lines, detailTextStyle.Render("  "+result.Message))
		}
		for _, artifact := range result.Artifacts {
			lines = append(lines, detailTextStyle.Render("  -> "+artifact))
		}
	}
	return lines
}

// Summary renders the closing line of a run.
func Summary(r runner.Report) string {
	c := r.Counts()
	return fmt.Sprintf("Workflow completed: %d/%d steps successful", c.Succeeded, c.Total)
}

// Text renders the full human-readable report.
func Text(r runner.Report) string {
	lines := []string{headerStyle.Render(fmt.Sprintf("Workflow: %s", r.Workflow)) + detailTextStyle.Render(" run "+r.RunID)}
	total := len(r.Steps)
	for idx, step := range r.Steps {
		lines = append(lines, StepLine(idx, total, step))
		lines = append(lines, StepDetails(step)...)
	}
	c := r.Counts()
	lines = append(lines,
		"",
		Summary(r),
		fmt.Sprintf("Status: %s · failed %d · skipped %d · %s",
			StatusStyle(string(r.Status)).Render(string(r.Status)), c.Failed, c.Skipped, FormatDuration(r.Duration)),
	)
	return strings.Join(lines, "\n") + "\n"
}

// Write renders r to w in the requested format.
func Write(w io.Writer, r runner.Report, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		_, err := io.WriteString(w, Text(r))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toDocument(r))
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toDocument(r)); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}

// FormatDuration rounds d for display.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

type document struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Workflow string        `json:"workflow" yaml:"workflow"`
	Status   string        `json:"status" yaml:"status"`
	Started  string        `json:"started" yaml:"started"`
	Duration string        `json:"duration" yaml:"duration"`
	Counts   runner.Counts `json:"counts" yaml:"counts"`
	Steps    []stepEntry   `json:"steps" yaml:"steps"`
}

type stepEntry struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tool       string   `json:"tool" yaml:"tool"`
	Status     string   `json:"status" yaml:"status"`
	Optional   bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
	Duration   string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Artifacts  []string `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Message    string   `json:"message,omitempty" yaml:"message,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Diagnostic string   `json:"diagnostic,omitempty" yaml:"diagnostic,omitempty"`
}

func toDocument(r runner.Report) document {
	doc := document{
		RunID:    r.RunID,
		Workflow: r.Workflow,
		Status:   string(r.Status),
		Started:  r.Started.UTC().Format(time.RFC3339),
		Duration: r.Duration.String(),
		Counts:   r.Counts(),
		Steps:    make([]stepEntry, 0, len(r.Steps)),
	}
	for _, step := range r.Steps {
		entry := stepEntry{
			ID:         step.StepID,
			Name:       step.Name,
			Tool:       step.Tool,
			Status:     string(step.Status),
			Optional:   step.Optional,
			Artifacts:  step.Artifacts,
			Message:    step.Message,
			Error:      step.Error,
			Diagnostic: step.Diagnostic,
		}
		if step.Status != executor.StatusSkipped {
			entry.Duration = step.Duration.String()
		}
		doc.Steps = append(doc.Steps, entry)
	}
	return doc
}
