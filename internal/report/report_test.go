package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

func sampleReport() runner.Report {
	return runner.Report{
		RunID:    "run-7",
		Workflow: "spam-analysis",
		Status:   runner.StatusFailure,
		Started:  time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		Duration: 2500 * time.Millisecond,
		Steps: []executor.StepResult{
			{StepID: "recent", Name: "Filter 2024", Tool: "tool/filter", Status: executor.StatusSuccess, Artifacts: []string{"out/recent.json"}, Duration: 1200 * time.Millisecond},
			{StepID: "plot", Tool: "plotter/timeline", Status: executor.StatusFailure, Error: "timeline exited with code 1", Diagnostic: "ImportError: matplotlib", Duration: 300 * time.Millisecond},
			{StepID: "publish", Tool: "tool/publish", Status: executor.StatusSkipped, Message: "aborted after plot failed"},
		},
	}
}

func TestText(t *testing.T) {
	out := Text(sampleReport())
	for _, fragment := range []string{
		"Workflow: spam-analysis",
		"Step 1/3: Filter 2024 (recent) [tool/filter] success 1.2s",
		"-> out/recent.json",
		"Step 2/3: plot [plotter/timeline] failure 300ms",
		"error: timeline exited with code 1",
		"| ImportError: matplotlib",
		"Step 3/3: publish [tool/publish] skipped",
		"aborted after plot failed",
		"Workflow completed: 1/3 steps successful",
	} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in report:\n%s", fragment, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport(), "json"); err != nil {
		t.Fatalf("write: %v", err)
	}
	var doc document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(runner.Counts{Total: 3, Succeeded: 1, Failed: 1, Skipped: 1}, doc.Counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
	if doc.Steps[1].Diagnostic != "ImportError: matplotlib" || doc.Steps[2].Duration != "" {
		t.Fatalf("unexpected steps: %+v", doc.Steps)
	}
	if doc.Started != "2024-06-01T09:00:00Z" || doc.Duration != "2.5s" {
		t.Fatalf("unexpected timing: %s %s", doc.Started, doc.Duration)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleReport(), "yaml"); err != nil {
		t.Fatalf("write: %v", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["status"] != "failure" || doc["run_id"] != "run-7" {
		t.Fatalf("unexpected yaml document: %v", doc)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, sampleReport(), "xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
