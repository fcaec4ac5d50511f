package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/builtin"
	"github.com/kingrea/thunder-muscle/internal/config"
	"github.com/kingrea/thunder-muscle/internal/logbook"
	"github.com/kingrea/thunder-muscle/internal/logging"
	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/plugins"
)

// errRunFailed signals a run that finished with a failed required step. The
// report has already been printed, so main only sets the exit code.
var errRunFailed = errors.New("workflow failed")

// skipConfigAnnotation marks commands that must work without a loadable config.
const skipConfigAnnotation = "tm/skip-config"

var rootFlags struct {
	projectDir string
	configPath string
	logLevel   string
	logFormat  string
}

// app is populated by the root pre-run hook.
var app struct {
	cfg     *config.Config
	logFile *os.File
	logbook *logbook.Logbook
}

var rootCmd = &cobra.Command{
	Use:               "tm",
	Short:             "Thunder Muscle: mail archive extraction and analysis workflows",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&rootFlags.projectDir, "project", "C", "", "project directory (defaults to the working directory)")
	pf.StringVar(&rootFlags.configPath, "config", "", "config file (defaults to <project>/config.yaml)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "log level for stderr: debug, info, warn, error")
	pf.StringVar(&rootFlags.logFormat, "log-format", "", "log format: text or json (overrides logging.format)")

	rootCmd.AddCommand(initCmd, runCmd, validateCmd, toolsCmd, execCmd, extractCmd, filterCmd, analyzeCmd, statsCmd, logCmd)
}

func projectDir() (string, error) {
	if dir := strings.TrimSpace(rootFlags.projectDir); dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfigAnnotation] != "" {
		return nil
	}
	dir, err := projectDir()
	if err != nil {
		return fmt.Errorf("determine project dir: %w", err)
	}
	cfg, err := config.Load(dir, rootFlags.configPath)
	if err != nil {
		return err
	}
	app.cfg = cfg
	return configureLogging(cfg, cmd.ErrOrStderr())
}

// configureLogging always writes to the log file at the configured level.
// Logs reach stderr only when --log-level is given.
func configureLogging(cfg *config.Config, stderr io.Writer) error {
	levelName := cfg.Logging.Level
	var writers []io.Writer
	if rootFlags.logLevel != "" {
		levelName = rootFlags.logLevel
		writers = append(writers, stderr)
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}
	format := cfg.Logging.Format
	if rootFlags.logFormat != "" {
		format = rootFlags.logFormat
	}
	if cfg.Logging.Dir != "" {
		f, err := logging.OpenFile(cfg.Logging.Dir)
		if err != nil {
			return err
		}
		app.logFile = f
		writers = append(writers, f)
		book, err := logbook.Open(cfg.Logging.Dir)
		if err != nil {
			return err
		}
		app.logbook = book
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}
	logging.Init(level, format, writers...)
	return nil
}

// closeLogFile releases the log file opened by setup. PersistentPostRun is
// skipped when a command fails, so main calls this after Execute.
func closeLogFile() {
	if app.logFile != nil {
		_ = app.logFile.Close()
		app.logFile = nil
	}
}

// buildRegistry registers the built-ins and discovers plugin tools.
func buildRegistry(ctx context.Context, cfg *config.Config) (*tool.Registry, error) {
	profile, _ := cfg.ProfilePath("")
	var require []tool.Category
	for _, name := range cfg.Tools.Require {
		c, err := tool.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		require = append(require, c)
	}
	return plugins.Discover(ctx, plugins.Dirs{
		Analyzers: cfg.Tools.Analyzers,
		Plotters:  cfg.Tools.Plotters,
		Tools:     cfg.Tools.Tools,
	}, plugins.Options{
		Builtins: builtin.Tools(builtin.Options{
			Profile:      profile,
			Filters:      cfg.Filters,
			OutputFormat: cfg.Defaults.OutputFormat,
		}),
		Require: require,
		Logger:  logging.New("plugins"),
	})
}

func logger(component string) *slog.Logger {
	return logging.New(component)
}
