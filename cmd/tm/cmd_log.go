package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/logbook"
	"github.com/kingrea/thunder-muscle/internal/report"
)

var logFlags struct {
	lines int
	runID string
	level string
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the most recent run log entries",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

func init() {
	f := logCmd.Flags()
	f.IntVarP(&logFlags.lines, "lines", "n", 20, "number of entries to show (0 for all)")
	f.StringVar(&logFlags.runID, "run", "", "only entries of this run id")
	f.StringVar(&logFlags.level, "level", "", "minimum level: info, warn or error")
}

func runLog(cmd *cobra.Command, _ []string) error {
	filter := logbook.Filter{RunID: logFlags.runID}
	if logFlags.level != "" {
		level, err := logbook.ParseLevel(logFlags.level)
		if err != nil {
			return err
		}
		filter.MinLevel = level
	}
	w := cmd.OutOrStdout()
	entries, total := app.logbook.Find(filter, logFlags.lines)
	if total == 0 {
		fmt.Fprintln(w, "No matching log entries.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(w, styleEntry(e))
	}
	if total > len(entries) {
		fmt.Fprintf(w, "(%d of %d entries, %s)\n", len(entries), total, app.logbook.Path())
	}
	return nil
}

func styleEntry(e logbook.Entry) string {
	switch e.Level {
	case logbook.LevelError:
		return report.StatusStyle("failure").Render(e.Line)
	case logbook.LevelWarn:
		return report.StatusStyle("skipped").Render(e.Line)
	default:
		return e.Line
	}
}
