package main

import (
	"github.com/spf13/cobra"
)

// The built-in shortcuts map flags onto tool params and go through the
// same path as tm exec.

var extractFlags struct {
	profile string
	output  string
	format  string
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the complete dataset from a Thunderbird profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output := extractFlags.output
		if output == "" {
			output = app.cfg.Defaults.CompleteDataset
		}
		params := map[string]any{}
		if extractFlags.profile != "" {
			params["profile"] = extractFlags.profile
		}
		if extractFlags.format != "" {
			params["format"] = extractFlags.format
		}
		return runBuiltin(cmd, execRequest{Tool: "tool/extract", Outputs: []string{output}, Params: params})
	},
}

var filterFlags struct {
	input           string
	output          string
	domain          string
	year            string
	subjectContains string
	hasBody         bool
	limit           int
	format          string
}

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter a dataset by domain, year, subject, body presence and limit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]any{}
		setString(params, "domain", filterFlags.domain)
		setString(params, "year", filterFlags.year)
		setString(params, "subject_contains", filterFlags.subjectContains)
		setString(params, "format", filterFlags.format)
		if cmd.Flags().Changed("has-body") {
			params["has_body"] = filterFlags.hasBody
		}
		if filterFlags.limit > 0 {
			params["limit"] = filterFlags.limit
		}
		return runBuiltin(cmd, execRequest{
			Tool:    "tool/filter",
			Inputs:  []string{datasetInput(filterFlags.input)},
			Outputs: []string{filterFlags.output},
			Params:  params,
		})
	},
}

var analyzeFlags struct {
	input         string
	output        string
	pattern       string
	caseSensitive bool
	format        string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Count regex matches in subjects and bodies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]any{"case_sensitive": analyzeFlags.caseSensitive}
		setString(params, "pattern", analyzeFlags.pattern)
		setString(params, "format", analyzeFlags.format)
		return runBuiltin(cmd, execRequest{
			Tool:    "analyzer/analyze",
			Inputs:  []string{datasetInput(analyzeFlags.input)},
			Outputs: optionalOutput(analyzeFlags.output),
			Params:  params,
		})
	},
}

var statsFlags struct {
	input  string
	output string
	top    int
	format string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dataset statistics and top sender domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		params := map[string]any{"top": statsFlags.top}
		setString(params, "format", statsFlags.format)
		return runBuiltin(cmd, execRequest{
			Tool:    "analyzer/stats",
			Inputs:  []string{datasetInput(statsFlags.input)},
			Outputs: optionalOutput(statsFlags.output),
			Params:  params,
		})
	},
}

func init() {
	ef := extractCmd.Flags()
	ef.StringVarP(&extractFlags.profile, "profile", "p", "", "profile directory (defaults to thunderbird.profile)")
	ef.StringVarP(&extractFlags.output, "output", "o", "", "output file (defaults to defaults.complete_dataset)")
	ef.StringVar(&extractFlags.format, "format", "", "json, csv or yaml (defaults to the output extension)")

	ff := filterCmd.Flags()
	ff.StringVarP(&filterFlags.input, "input", "i", "", "input dataset (defaults to defaults.complete_dataset)")
	ff.StringVarP(&filterFlags.output, "output", "o", "", "output file")
	ff.StringVar(&filterFlags.domain, "domain", "", "sender domain")
	ff.StringVar(&filterFlags.year, "year", "", "date substring, usually a year")
	ff.StringVar(&filterFlags.subjectContains, "subject-contains", "", "case-insensitive subject substring")
	ff.BoolVar(&filterFlags.hasBody, "has-body", false, "only messages with (or, with =false, without) a body")
	ff.IntVar(&filterFlags.limit, "limit", 0, "keep at most this many messages")
	ff.StringVar(&filterFlags.format, "format", "", "json, csv or yaml")
	_ = filterCmd.MarkFlagRequired("output")

	af := analyzeCmd.Flags()
	af.StringVarP(&analyzeFlags.input, "input", "i", "", "input dataset (defaults to defaults.complete_dataset)")
	af.StringVarP(&analyzeFlags.output, "output", "o", "", "optional report file")
	af.StringVar(&analyzeFlags.pattern, "pattern", "", "regular expression (defaults to the built-in pattern)")
	af.BoolVar(&analyzeFlags.caseSensitive, "case-sensitive", false, "match case-sensitively")
	af.StringVar(&analyzeFlags.format, "format", "", "json, csv or yaml")

	sf := statsCmd.Flags()
	sf.StringVarP(&statsFlags.input, "input", "i", "", "input dataset (defaults to defaults.complete_dataset)")
	sf.StringVarP(&statsFlags.output, "output", "o", "", "optional report file")
	sf.IntVar(&statsFlags.top, "top", 10, "number of top sender domains to show")
	sf.StringVar(&statsFlags.format, "format", "", "json, csv or yaml")
}

func runBuiltin(cmd *cobra.Command, req execRequest) error {
	if err := app.cfg.EnsureDirectories(); err != nil {
		return err
	}
	reg, err := buildRegistry(cmd.Context(), app.cfg)
	if err != nil {
		return err
	}
	result, err := execTool(cmd.Context(), app.cfg, reg, req, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	return printExecResult(cmd.ErrOrStderr(), result)
}

func datasetInput(path string) string {
	if path != "" {
		return path
	}
	return app.cfg.Defaults.CompleteDataset
}

func optionalOutput(path string) []string {
	if path == "" {
		return nil
	}
	return []string{path}
}

func setString(params map[string]any, key, value string) {
	if value != "" {
		params[key] = value
	}
}
