package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingrea/thunder-muscle/internal/dataset"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

// FilterCriteria selects messages from a dataset. Zero values match everything.
type FilterCriteria struct {
	Domain          string
	Year            string
	SubjectContains string
	HasBody         bool
	Limit           int
}

// Apply returns the matching messages in dataset order.
func (c FilterCriteria) Apply(emails []dataset.Email) []dataset.Email {
	results := make([]dataset.Email, 0, len(emails))
	domain := strings.ToLower(c.Domain)
	subject := strings.ToLower(c.SubjectContains)
	for _, e := range emails {
		if domain != "" && strings.ToLower(e.FromDomain) != domain {
			continue
		}
		if c.Year != "" && !strings.Contains(e.Date, c.Year) {
			continue
		}
		if subject != "" && !strings.Contains(strings.ToLower(e.Subject), subject) {
			continue
		}
		if c.HasBody && !e.HasBody {
			continue
		}
		results = append(results, e)
	}
	if c.Limit > 0 && len(results) > c.Limit {
		results = results[:c.Limit]
	}
	return results
}

func criteriaFromParams(params map[string]any) FilterCriteria {
	return FilterCriteria{
		Domain:          stringParam(params, "domain"),
		Year:            stringParam(params, "year"),
		SubjectContains: stringParam(params, "subject_contains"),
		HasBody:         boolParam(params, "has_body"),
		Limit:           intParam(params, "limit"),
	}
}

func filterTool(opts Options) tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "filter",
			Category:    tool.CategoryTool,
			Description: "Filter a dataset by domain, year, subject, body presence and limit",
			Source:      Source,
			Params: tool.Schema{
				"domain":           {Type: tool.TypeString, Description: "sender domain"},
				"year":             {Type: tool.TypeAny, Description: "substring of the date, usually a year"},
				"subject_contains": {Type: tool.TypeString},
				"has_body":         {Type: tool.TypeBool},
				"limit":            {Type: tool.TypeInt},
				"format":           {Type: tool.TypeString},
			},
		},
		Fn: func(_ context.Context, inv tool.Invocation) (tool.Outcome, error) {
			in, err := singleInput("filter", inv)
			if err != nil {
				return tool.Outcome{}, err
			}
			out := firstOutput(inv)
			if out == "" {
				return tool.Outcome{}, fmt.Errorf("filter: an output path is required")
			}
			emails, err := dataset.Load(in)
			if err != nil {
				return tool.Outcome{}, err
			}
			results := criteriaFromParams(inv.Params).Apply(emails)
			if _, err := dataset.WriteFile(out, results, outputFormat(opts, inv.Params, out)); err != nil {
				return tool.Outcome{}, err
			}
			msg := fmt.Sprintf("Filtered to %d emails, saved to %s", len(results), out)
			fmt.Fprintln(stdout(inv), msg)
			return tool.Outcome{Outputs: []string{out}, Message: msg}, nil
		},
	}
}
