package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func fake(name string, category Category, source string) Tool {
	return Func{
		Desc: Descriptor{Name: name, Category: category, Source: source},
		Fn: func(context.Context, Invocation) (Outcome, error) {
			return Outcome{Message: name}, nil
		},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(
		fake("stats", CategoryAnalyzer, "builtin"),
		fake("stats", CategoryTool, "tools/stats.sh"),
		fake("timeline", CategoryPlotter, "plotters/timeline.py"),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	tests := []struct {
		ref        string
		wantSource string
	}{
		{"stats", "builtin"},
		{"analyzer/stats", "builtin"},
		{"tool/stats", "tools/stats.sh"},
		{"tools/stats", "tools/stats.sh"},
		{"filters/stats", "tools/stats.sh"},
		{" timeline ", "plotters/timeline.py"},
	}
	for _, tt := range tests {
		got, err := reg.Lookup(tt.ref)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.ref, err)
		}
		if got.Descriptor().Source != tt.wantSource {
			t.Fatalf("Lookup(%q) source = %s, want %s", tt.ref, got.Descriptor().Source, tt.wantSource)
		}
	}
	for _, ref := range []string{"", "missing", "plotter/stats", "bogus/stats"} {
		_, err := reg.Lookup(ref)
		if !errors.Is(err, ErrUnknownTool) {
			t.Fatalf("Lookup(%q) err = %v, want ErrUnknownTool", ref, err)
		}
	}
	if _, ok := reg.Schema("missing"); ok {
		t.Fatal("Schema for missing tool reported ok")
	}
	if reg.Len() != 3 {
		t.Fatalf("Len = %d", reg.Len())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(
		fake("clean", CategoryTool, "tools/clean.sh"),
		fake("clean", CategoryTool, "tools/clean.yaml"),
	)
	var dup *DuplicateToolError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateToolError", err)
	}
	want := DuplicateToolError{Category: CategoryTool, Name: "clean", First: "tools/clean.sh", Second: "tools/clean.yaml"}
	if diff := cmp.Diff(want, *dup); diff != "" {
		t.Fatalf("duplicate mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistryRejectsInvalidDescriptor(t *testing.T) {
	bad := []Tool{
		fake("", CategoryTool, "x"),
		fake("has space", CategoryTool, "x"),
		fake("ok", Category("widgets"), "x"),
		Func{Desc: Descriptor{Name: "typed", Category: CategoryTool, Params: Schema{"n": {Type: "number"}}}},
		Func{Desc: Descriptor{Name: "baddefault", Category: CategoryTool, Params: Schema{"n": {Type: TypeInt, Default: "ten"}}}},
	}
	for _, tl := range bad {
		if _, err := NewRegistry(tl); err == nil {
			t.Fatalf("NewRegistry accepted %+v", tl.Descriptor())
		}
	}
}

func TestRegistryDescriptorsAndRequire(t *testing.T) {
	reg := MustRegistry(
		fake("zeta", CategoryTool, "a"),
		fake("alpha", CategoryTool, "b"),
		fake("count", CategoryAnalyzer, "c"),
	)
	var names []string
	for _, d := range reg.Descriptors() {
		names = append(names, d.QualifiedName())
	}
	if diff := cmp.Diff([]string{"analyzer/count", "tool/alpha", "tool/zeta"}, names); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if err := reg.Require(CategoryAnalyzer, CategoryTool); err != nil {
		t.Fatalf("Require: %v", err)
	}
	err := reg.Require(CategoryTool, CategoryPlotter)
	var empty *EmptyRegistryError
	if !errors.As(err, &empty) || empty.Category != CategoryPlotter {
		t.Fatalf("err = %v, want empty plotter category", err)
	}
}

func TestParseCategory(t *testing.T) {
	for in, want := range map[string]Category{
		"analyzers": CategoryAnalyzer,
		"Plotter":   CategoryPlotter,
		"filters":   CategoryTool,
		"tools":     CategoryTool,
	} {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCategory("widgets"); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestFuncWithoutFn(t *testing.T) {
	f := Func{Desc: Descriptor{Name: "empty", Category: CategoryTool}}
	if _, err := f.Invoke(context.Background(), Invocation{}); err == nil {
		t.Fatal("expected error for unbound Func")
	}
}
