package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

var sample = []Email{
	{MessageID: "<a@x>", Date: "2024-03-01 10:00:00", From: "Ann <ann@example.com>", FromDomain: "example.com", Subject: "Hi, there", Body: "hello", HasBody: true},
	{MessageID: "<b@y>", Date: "2023-01-02 08:00:00", From: "bob@other.org", FromDomain: "other.org", Subject: "Re: stuff"},
}

func TestDetectFormat(t *testing.T) {
	cases := map[string]string{
		"out.json":  FormatJSON,
		"out.CSV":   FormatCSV,
		"out.yml":   FormatYAML,
		"out.yaml":  FormatYAML,
		"out":       FormatJSON,
		"out.jsonl": FormatJSON,
	}
	for path, want := range cases {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNormalizeFormat(t *testing.T) {
	if got, err := NormalizeFormat(" YML "); err != nil || got != FormatYAML {
		t.Fatalf("NormalizeFormat(yml) = %q, %v", got, err)
	}
	if _, err := NormalizeFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}

func TestWriteFileJSONLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "all.json")
	format, err := WriteFile(path, sample, "")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if format != FormatJSON {
		t.Fatalf("format = %q", format)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(sample, got); diff != "" {
		t.Fatalf("dataset mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "all.csv")
	if _, err := WriteFile(path, sample, ""); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("want header + 2 rows, got %d lines:\n%s", len(lines), data)
	}
	if lines[0] != strings.Join(emailHeader, ",") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Hi, there"`) {
		t.Fatalf("subject with comma not quoted: %q", lines[1])
	}
}

func TestWriteFileExplicitFormatOverridesExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	if _, err := WriteFile(path, map[string]any{"total": 2}, "yaml"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("not yaml: %v\n%s", err, data)
	}
	if got["total"] != 2 {
		t.Fatalf("total = %v", got["total"])
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(empty); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("empty file: err = %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestYear(t *testing.T) {
	if got := sample[0].Year(); got != "2024" {
		t.Fatalf("Year = %q", got)
	}
	if got := (Email{Date: "24"}).Year(); got != "unknown" {
		t.Fatalf("short date Year = %q", got)
	}
}
