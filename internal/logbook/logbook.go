package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the run log kept next to tm.log.
const FileName = "runs.log"

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logbook appends one line per workflow event to a plain text file so
// `tm log` can show what happened in earlier runs.
type Logbook struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{path: path, clock: time.Now}, nil
}

// Open creates the logbook under the given logs directory.
func Open(logsDir string) (*Logbook, error) {
	return New(filepath.Join(logsDir, FileName))
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry. Write failures are dropped; the logbook is
// advisory and must never fail a run.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		l.clock().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(strings.ReplaceAll(message, "\n", " ")),
	)
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Entry is one parsed logbook line.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Line    string
}

// RunID returns the run the entry belongs to, taken from a leading
// "run <id>:" in the message.
func (e Entry) RunID() string {
	rest, ok := strings.CutPrefix(e.Message, "run ")
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, ":")
	if !ok || strings.ContainsAny(id, " \t") {
		return ""
	}
	return id
}

// ParseEntry splits a line written by Append. Lines in any other shape are
// kept with only Line and Message set.
func ParseEntry(line string) Entry {
	entry := Entry{Line: line, Message: line}
	stamp, rest, ok := strings.Cut(line, " ")
	if !ok {
		return entry
	}
	ts, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return entry
	}
	level, msg, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	entry.Time = ts
	entry.Level = Level(level)
	entry.Message = strings.TrimLeft(msg, " ")
	return entry
}

// Filter narrows Find. Zero fields match everything.
type Filter struct {
	RunID string
	// MinLevel drops entries below this severity.
	MinLevel Level
}

func (f Filter) match(e Entry) bool {
	if f.RunID != "" && e.RunID() != f.RunID {
		return false
	}
	if f.MinLevel != "" && severity(e.Level) < severity(f.MinLevel) {
		return false
	}
	return true
}

func severity(level Level) int {
	switch level {
	case LevelWarn:
		return 1
	case LevelError:
		return 2
	default:
		return 0
	}
}

// ParseLevel accepts info, warn/warning and error in any case.
func ParseLevel(value string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return "", fmt.Errorf("logbook: unknown level %q", value)
	}
}

// Find returns up to limit of the most recent entries matching f plus the
// number of matching entries in the file. A limit <= 0 returns all matches.
func (l *Logbook) Find(f Filter, limit int) ([]Entry, int) {
	if l == nil {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		if entry := ParseEntry(scanner.Text()); f.match(entry) {
			entries = append(entries, entry)
		}
	}
	total := len(entries)
	if total == 0 {
		return nil, 0
	}
	if limit > 0 && total > limit {
		entries = entries[total-limit:]
	}
	return entries, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
