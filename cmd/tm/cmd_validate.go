package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/workflow/runner"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow>",
	Short: "Check a workflow and print its execution plan without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var validateFlags struct {
	allowMissingInputs bool
}

func init() {
	validateCmd.Flags().BoolVar(&validateFlags.allowMissingInputs, "allow-missing-inputs", false, "do not require literal input files to exist")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := app.cfg
	reg, err := buildRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	doc, err := loadWorkflow(cfg, reg, args[0])
	if err != nil {
		return err
	}
	r, err := runner.New(reg, runner.WithResolveOptions(resolveOptions(cfg, validateFlags.allowMissingInputs)))
	if err != nil {
		return err
	}
	plan, err := r.Validate(doc)
	if err != nil {
		return invalid(args[0], err)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Workflow %s is valid (%d steps)\n", doc.Name, len(plan.Steps))
	for i, step := range plan.Steps {
		fmt.Fprintf(w, "%d. %s [%s]", i+1, step.Step.DisplayName(), step.Tool.Descriptor().QualifiedName())
		if step.Step.Optional {
			fmt.Fprint(w, " (optional)")
		}
		fmt.Fprintln(w)
		if len(step.DependsOn) > 0 {
			fmt.Fprintf(w, "   after:   %s\n", strings.Join(step.DependsOn, ", "))
		}
		if len(step.Inputs) > 0 {
			fmt.Fprintf(w, "   inputs:  %s\n", strings.Join(step.Inputs, ", "))
		}
		if paths := step.OutputPaths(); len(paths) > 0 {
			fmt.Fprintf(w, "   outputs: %s\n", strings.Join(paths, ", "))
		}
		if dependents := plan.Dependents(step.Step.ID); len(dependents) > 0 {
			fmt.Fprintf(w, "   feeds:   %s\n", strings.Join(dependents, ", "))
		}
		if step.Timeout > 0 {
			fmt.Fprintf(w, "   timeout: %s\n", step.Timeout)
		}
	}
	return nil
}
