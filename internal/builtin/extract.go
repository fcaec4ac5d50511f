package builtin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/thunder-muscle/internal/dataset"
	"github.com/kingrea/thunder-muscle/internal/gloda"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

func extractTool(opts Options) tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "extract",
			Category:    tool.CategoryTool,
			Description: "Extract the complete message dataset from a profile's Gloda index",
			Source:      Source,
			Params: tool.Schema{
				"profile": {Type: tool.TypePath, Description: "profile directory (defaults to thunderbird.profile)"},
				"format":  {Type: tool.TypeString, Description: "json, csv or yaml"},
			},
		},
		Fn: func(ctx context.Context, inv tool.Invocation) (tool.Outcome, error) {
			out := firstOutput(inv)
			if out == "" {
				return tool.Outcome{}, fmt.Errorf("extract: an output path is required")
			}
			profile := stringParam(inv.Params, "profile")
			if profile == "" && len(inv.Inputs) > 0 {
				profile = inv.Inputs[0]
			}
			if profile == "" {
				profile = opts.Profile
			}
			if profile == "" {
				return tool.Outcome{}, fmt.Errorf("extract: no profile specified")
			}
			emails, summary, err := gloda.Extract(ctx, profile, opts.Filters)
			if err != nil {
				return tool.Outcome{}, err
			}
			if emails == nil {
				emails = []dataset.Email{}
			}
			if _, err := dataset.WriteFile(out, emails, outputFormat(opts, inv.Params, out)); err != nil {
				return tool.Outcome{}, err
			}
			msg := fmt.Sprintf("Extracted %d emails (%d with bodies) to %s", summary.Total, summary.WithBody, out)
			if summary.Filtered > 0 {
				msg += fmt.Sprintf(", %d filtered by config", summary.Filtered)
			}
			fmt.Fprintln(stdout(inv), msg)
			return tool.Outcome{Outputs: []string{out}, Message: msg}, nil
		},
	}
}

func extOf(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
