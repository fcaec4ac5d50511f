package workflow

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		in   string
		want Ref
		ok   bool
	}{
		{in: "${filter}", want: Ref{Step: "filter"}, ok: true},
		{in: " ${filter.recent} ", want: Ref{Step: "filter", Output: "recent"}, ok: true},
		{in: "${a.out.json}", want: Ref{Step: "a", Output: "out.json"}, ok: true},
		{in: "assets/data.json", ok: false},
		{in: "${}", ok: false},
		{in: "prefix-${a}", ok: false},
	}
	for _, tc := range tests {
		got, ok := ParseRef(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseRef(%q) = %+v, %v; want %+v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDocumentInputRef(t *testing.T) {
	doc := Document{Steps: []Step{
		{ID: "a", Outputs: []Output{{ID: "recent", Path: "out/recent.json"}}},
		{ID: "b", Inputs: []string{"recent"}},
	}}
	for _, in := range []string{"recent", "out/recent.json", "${a}", "${a.recent}", "${recent}"} {
		ref, ok := doc.InputRef(in, 1)
		if !ok {
			t.Fatalf("expected %q to be symbolic", in)
		}
		if ref.Step != "a" {
			t.Fatalf("expected %q to point at step a, got %+v", in, ref)
		}
	}
	if _, ok := doc.InputRef("assets/complete.json", 1); ok {
		t.Fatalf("expected literal path")
	}
}

func TestDocumentInputRefNearestEarlierProducer(t *testing.T) {
	doc := Document{Steps: []Step{
		{ID: "a", Outputs: []Output{{ID: "first", Path: "out.json"}}},
		{ID: "b", Inputs: []string{"out.json"}, Outputs: []Output{{ID: "second", Path: "out.json"}}},
		{ID: "c", Inputs: []string{"out.json"}},
	}}
	tests := []struct {
		idx  int
		want Ref
		ok   bool
	}{
		{idx: 0, want: Ref{Step: "a", Output: "first"}, ok: true},
		{idx: 1, want: Ref{Step: "a", Output: "first"}, ok: true},
		{idx: 2, want: Ref{Step: "b", Output: "second"}, ok: true},
	}
	for _, tc := range tests {
		got, ok := doc.InputRef("out.json", tc.idx)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("InputRef(out.json, %d) = %+v, %v; want %+v, %v", tc.idx, got, ok, tc.want, tc.ok)
		}
	}
	later := Document{Steps: []Step{
		{ID: "a", Inputs: []string{"assets/seed.json"}},
		{ID: "b", Outputs: []Output{{ID: "seed", Path: "assets/seed.json"}}},
	}}
	if _, ok := later.InputRef("assets/seed.json", 0); ok {
		t.Fatalf("a path only produced by a later step must stay literal")
	}
}

func TestEffectiveParams(t *testing.T) {
	doc := Document{Defaults: map[string]any{"format": "json", "top": 10, "nested": map[string]any{"a": 1, "b": 2}}}
	step := Step{Params: map[string]any{"top": 3, "nested": map[string]any{"a": 9}}}

	open := doc.EffectiveParams(step, nil)
	want := map[string]any{"format": "json", "top": 3, "nested": map[string]any{"a": 9}}
	if diff := cmp.Diff(want, open); diff != "" {
		t.Fatalf("open schema params mismatch (-want +got):\n%s", diff)
	}

	closed := doc.EffectiveParams(step, tool.Schema{"top": {Type: tool.TypeInt}})
	want = map[string]any{"top": 3, "nested": map[string]any{"a": 9}}
	if diff := cmp.Diff(want, closed); diff != "" {
		t.Fatalf("closed schema params mismatch (-want +got):\n%s", diff)
	}
	if _, ok := doc.Defaults["nested"].(map[string]any)["b"]; !ok {
		t.Fatalf("defaults must not be mutated")
	}
}

func TestStepTimeoutPrecedence(t *testing.T) {
	doc := Document{Timeout: time.Minute}
	if got := doc.StepTimeout(Step{Timeout: time.Second}, time.Hour); got != time.Second {
		t.Fatalf("step timeout should win, got %v", got)
	}
	if got := doc.StepTimeout(Step{}, time.Hour); got != time.Minute {
		t.Fatalf("document timeout should apply, got %v", got)
	}
	if got := (Document{}).StepTimeout(Step{}, time.Hour); got != time.Hour {
		t.Fatalf("fallback should apply, got %v", got)
	}
}
