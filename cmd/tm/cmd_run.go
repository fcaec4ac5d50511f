package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/config"
	"github.com/kingrea/thunder-muscle/internal/report"
	"github.com/kingrea/thunder-muscle/internal/tool"
	"github.com/kingrea/thunder-muscle/internal/tui"
	"github.com/kingrea/thunder-muscle/internal/workflow"
	"github.com/kingrea/thunder-muscle/internal/workflow/executor"
	"github.com/kingrea/thunder-muscle/internal/workflow/resolver"
	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

var runFlags struct {
	tui                bool
	keepGoing          bool
	format             string
	allowMissingInputs bool
}

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run a workflow file or a workflow name under workflows.dir",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.BoolVar(&runFlags.tui, "tui", false, "show an interactive progress view")
	f.BoolVarP(&runFlags.keepGoing, "keep-going", "k", false, "keep running independent steps after a required step fails")
	f.StringVarP(&runFlags.format, "format", "f", report.FormatText, "report format: text, json or yaml")
	f.BoolVar(&runFlags.allowMissingInputs, "allow-missing-inputs", false, "do not require literal input files to exist before the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	format := strings.ToLower(strings.TrimSpace(runFlags.format))
	switch format {
	case report.FormatText, report.FormatJSON, report.FormatYAML:
	default:
		return fmt.Errorf("unknown report format %q", runFlags.format)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	reg, err := buildRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	doc, err := loadWorkflow(cfg, reg, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	// Tool output shares stdout with the text report only.
	toolOut := out
	if format != report.FormatText {
		toolOut = cmd.ErrOrStderr()
	}
	if runFlags.tui {
		toolOut = io.Discard
	}
	opts := []runner.Option{
		runner.WithExecutor(executor.New(
			executor.WithDir(cfg.ProjectDir),
			executor.WithOutput(toolOut, io.Discard),
			executor.WithLogger(logger("executor")),
		)),
		runner.WithResolveOptions(resolveOptions(cfg, runFlags.allowMissingInputs)),
		runner.WithContinueOnError(cfg.Workflows.ContinueOnError || runFlags.keepGoing),
		runner.WithLogbook(app.logbook),
		runner.WithLogger(logger("runner")),
	}

	var rep runner.Report
	switch {
	case runFlags.tui:
		obs := tui.NewObserver()
		r, err := runner.New(reg, append(opts, runner.WithObserver(obs))...)
		if err != nil {
			return err
		}
		rep, err = tui.Run(cmd.Context(), r, obs, doc, cmd.InOrStdin(), out)
		if err != nil && len(rep.Steps) == 0 {
			return invalid(args[0], err)
		}
		if err := report.Write(out, rep, format); err != nil {
			return err
		}
	case format == report.FormatText:
		r, err := runner.New(reg, append(opts, runner.WithObserver(textObserver(out)))...)
		if err != nil {
			return err
		}
		rep, err = r.Run(cmd.Context(), doc)
		if err != nil && len(rep.Steps) == 0 {
			return invalid(args[0], err)
		}
	default:
		r, err := runner.New(reg, opts...)
		if err != nil {
			return err
		}
		rep, err = r.Run(cmd.Context(), doc)
		if err != nil && len(rep.Steps) == 0 {
			return invalid(args[0], err)
		}
		if err := report.Write(out, rep, format); err != nil {
			return err
		}
	}
	if !rep.Succeeded() {
		return errRunFailed
	}
	return nil
}

// textObserver streams step lines as they finish.
func textObserver(w io.Writer) runner.Observer {
	return runner.ObserverFuncs{
		OnRunStarted: func(runID string, plan resolver.Plan) {
			fmt.Fprintf(w, "Running workflow %s (%d steps, run %s)\n", plan.Workflow.Name, len(plan.Steps), runID)
		},
		OnStepFinished: func(index, total int, result executor.StepResult) {
			fmt.Fprintln(w, report.StepLine(index, total, result))
			for _, line := range report.StepDetails(result) {
				fmt.Fprintln(w, line)
			}
		},
		OnRunFinished: func(rep runner.Report) {
			fmt.Fprintln(w)
			fmt.Fprintln(w, report.Summary(rep))
		},
	}
}

func loadWorkflow(cfg *config.Config, reg *tool.Registry, name string) (workflow.Document, error) {
	doc, err := workflow.LoadFile(cfg.WorkflowPath(name), reg)
	if err != nil {
		return workflow.Document{}, invalid(name, err)
	}
	return doc, nil
}

// invalid labels errors found before any step ran.
func invalid(name string, err error) error {
	if resolver.IsValidationError(err) {
		return fmt.Errorf("workflow %s is invalid: %w", name, err)
	}
	return err
}

func resolveOptions(cfg *config.Config, allowMissing bool) resolver.Options {
	return resolver.Options{
		BaseDir:            cfg.ProjectDir,
		AllowMissingInputs: allowMissing,
		DefaultTimeout:     cfg.Workflows.StepTimeout,
	}
}
