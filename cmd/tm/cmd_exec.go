package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/report"
)

var execFlags struct {
	inputs  []string
	outputs []string
	sets    keyValueFlag
	timeout time.Duration
}

var execCmd = &cobra.Command{
	Use:   "exec <tool>",
	Short: "Invoke a single tool outside a workflow",
	Long: `Invoke a single tool by name or category/name.

Parameters are passed with --set and decoded as YAML scalars:

  tm exec filter --input all.json --output 2024.json --set year=2024 --set limit=50`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	f := execCmd.Flags()
	f.StringArrayVarP(&execFlags.inputs, "input", "i", nil, "input path (repeatable)")
	f.StringArrayVarP(&execFlags.outputs, "output", "o", nil, "output path (repeatable)")
	f.VarP(&execFlags.sets, "set", "s", "tool parameter key=value (repeatable)")
	f.DurationVar(&execFlags.timeout, "timeout", 0, "abort the tool after this long (defaults to workflows.step_timeout)")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	params, err := execFlags.sets.Params()
	if err != nil {
		return err
	}
	reg, err := buildRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	result, err := execTool(cmd.Context(), cfg, reg, execRequest{
		Tool:    args[0],
		Inputs:  execFlags.inputs,
		Outputs: execFlags.outputs,
		Params:  params,
		Timeout: execFlags.timeout,
	}, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if !result.Succeeded() {
		fmt.Fprintln(cmd.ErrOrStderr(), report.StepLine(0, 1, result))
		return printExecResult(cmd.ErrOrStderr(), result)
	}
	return nil
}
