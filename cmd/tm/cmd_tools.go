package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/kingrea/thunder-muscle/internal/tool"
)

var toolsFlags struct {
	category string
	params   bool
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List built-in and discovered tools",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFlags.category, "category", "", "only list one category: analyzer, plotter or tool")
	toolsCmd.Flags().BoolVar(&toolsFlags.params, "params", false, "include each tool's parameters")
}

var toolsHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var toolsCellStyle = lipgloss.NewStyle().Padding(0, 1)

func runTools(cmd *cobra.Command, _ []string) error {
	reg, err := buildRegistry(cmd.Context(), app.cfg)
	if err != nil {
		return err
	}
	descs := reg.Descriptors()
	if toolsFlags.category != "" {
		c, err := tool.ParseCategory(toolsFlags.category)
		if err != nil {
			return err
		}
		var filtered []tool.Descriptor
		for _, d := range descs {
			if d.Category == c {
				filtered = append(filtered, d)
			}
		}
		descs = filtered
	}
	if len(descs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tools found.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), toolsTable(descs, toolsFlags.params))
	return nil
}

func toolsTable(descs []tool.Descriptor, withParams bool) string {
	headers := []string{"TOOL", "SOURCE", "DESCRIPTION"}
	if withParams {
		headers = append(headers, "PARAMS")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return toolsHeaderStyle
			}
			return toolsCellStyle
		})
	for _, d := range descs {
		row := []string{d.QualifiedName(), d.Source, d.Description}
		if withParams {
			row = append(row, paramSummary(d.Params))
		}
		t.Row(row...)
	}
	return t.Render()
}

func paramSummary(schema tool.Schema) string {
	if schema.Open() {
		return "(any)"
	}
	names := schema.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		spec := schema[name]
		part := fmt.Sprintf("%s:%s", name, spec.Type)
		if spec.Required {
			part += "*"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}
