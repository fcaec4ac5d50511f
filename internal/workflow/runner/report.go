package runner

import (
	"time"

	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
)

// Status is the overall outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Report is the result of one run, including the partial results of a run
// that stopped early.
type Report struct {
	RunID    string                `json:"run_id" yaml:"run_id"`
	Workflow string                `json:"workflow" yaml:"workflow"`
	Steps    []executor.StepResult `json:"steps" yaml:"steps"`
	Status   Status                `json:"status" yaml:"status"`
	Started  time.Time             `json:"started" yaml:"started"`
	Duration time.Duration         `json:"duration" yaml:"duration"`
}

// Succeeded reports whether every required step succeeded.
func (r Report) Succeeded() bool { return r.Status == StatusSuccess }

// Counts tallies step statuses.
type Counts struct {
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
}

// Counts tallies the report's step results.
func (r Report) Counts() Counts {
	c := Counts{Total: len(r.Steps)}
	for _, step := range r.Steps {
		switch step.Status {
		case executor.StatusSuccess:
			c.Succeeded++
		case executor.StatusFailure:
			c.Failed++
		case executor.StatusSkipped:
			c.Skipped++
		}
	}
	return c
}

func overallStatus(steps []executor.StepResult) Status {
	for _, step := range steps {
		if !step.Optional && step.Status != executor.StatusSuccess {
			return StatusFailure
		}
	}
	return StatusSuccess
}
