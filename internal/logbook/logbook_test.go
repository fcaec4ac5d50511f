package logbook

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFindReturnsRecentEntriesAndTotal(t *testing.T) {
	book, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Find(Filter{}, 3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx].Line, want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx].Line, want)
		}
	}
}

func TestAppendFormatsLevelAndFlattensNewlines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	book.clock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	book.Error("step %s failed:\nboom", "plot")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "2024-03-01T12:00:00Z ERROR step plot failed: boom\n"
	if string(data) != want {
		t.Fatalf("got %q, want %q", string(data), want)
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	if lines, total := book.Find(Filter{}, 10); lines != nil || total != 0 {
		t.Fatalf("expected empty tail, got %v %d", lines, total)
	}
	if book.Path() != "" {
		t.Fatal("expected empty path")
	}
}

func TestFindMissingFile(t *testing.T) {
	book, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if lines, total := book.Find(Filter{}, 5); lines != nil || total != 0 {
		t.Fatalf("expected nothing, got %v %d", lines, total)
	}
}

func TestFindFiltersByRunAndLevel(t *testing.T) {
	book, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	book.Info("run a1: workflow demo started (2 steps)")
	book.Error("run a1: step 1/2 fetch failed: boom")
	book.Warn("run a1: step 2/2 plot skipped: depends on fetch")
	book.Info("run b2: workflow demo started (1 steps)")
	book.Error("workflow broken rejected: no steps")

	entries, total := book.Find(Filter{RunID: "a1"}, 0)
	if total != 3 || len(entries) != 3 {
		t.Fatalf("run a1: got %d/%d entries", len(entries), total)
	}
	entries, total = book.Find(Filter{MinLevel: LevelWarn}, 2)
	if total != 3 {
		t.Fatalf("warn+ total = %d, want 3", total)
	}
	if len(entries) != 2 || entries[0].Level != LevelWarn || entries[1].Level != LevelError {
		t.Fatalf("warn+ entries = %+v", entries)
	}
	if entries[1].RunID() != "" {
		t.Fatalf("rejection entry has run id %q", entries[1].RunID())
	}
	entries, _ = book.Find(Filter{RunID: "a1", MinLevel: LevelError}, 0)
	if len(entries) != 1 || entries[0].Message != "run a1: step 1/2 fetch failed: boom" {
		t.Fatalf("a1 errors = %+v", entries)
	}
}

func TestParseEntry(t *testing.T) {
	got := ParseEntry("2024-03-01T12:00:00Z INFO  run x9: workflow w started (1 steps)")
	if got.Level != LevelInfo || got.RunID() != "x9" || !got.Time.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("entry = %+v", got)
	}
	if got.Message != "run x9: workflow w started (1 steps)" {
		t.Fatalf("message = %q", got.Message)
	}
	raw := ParseEntry("not a logbook line")
	if raw.Level != "" || raw.Message != "not a logbook line" {
		t.Fatalf("raw entry = %+v", raw)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if lvl, _ := ParseLevel("warning"); lvl != LevelWarn {
		t.Fatalf("ParseLevel(warning) = %q", lvl)
	}
}
