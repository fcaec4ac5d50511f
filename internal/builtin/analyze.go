package builtin

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kingrea/thunder-muscle/internal/dataset"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

// DefaultPattern is searched for when analyze gets no pattern.
const DefaultPattern = "unsubscribe"

// ContentReport summarizes pattern matches across subjects and bodies.
type ContentReport struct {
	Pattern         string   `json:"pattern" yaml:"pattern"`
	CaseSensitive   bool     `json:"case_sensitive" yaml:"case_sensitive"`
	TotalEmails     int      `json:"total_emails" yaml:"total_emails"`
	EmailsWithBody  int      `json:"emails_with_body" yaml:"emails_with_body"`
	SubjectMatches  int      `json:"subject_matches" yaml:"subject_matches"`
	BodyMatches     int      `json:"body_matches" yaml:"body_matches"`
	SubjectMatchIDs []string `json:"subject_match_ids,omitempty" yaml:"subject_match_ids,omitempty"`
	BodyMatchIDs    []string `json:"body_match_ids,omitempty" yaml:"body_match_ids,omitempty"`
}

// Header implements dataset.Tabular.
func (r ContentReport) Header() []string {
	return []string{"pattern", "total_emails", "emails_with_body", "subject_matches", "body_matches"}
}

// Rows implements dataset.Tabular.
func (r ContentReport) Rows() [][]string {
	return [][]string{{
		r.Pattern,
		fmt.Sprint(r.TotalEmails),
		fmt.Sprint(r.EmailsWithBody),
		fmt.Sprint(r.SubjectMatches),
		fmt.Sprint(r.BodyMatches),
	}}
}

// AnalyzeContent counts regex matches in subjects and, for messages with
// bodies, in body text.
func AnalyzeContent(emails []dataset.Email, pattern string, caseSensitive bool) (ContentReport, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	expr := pattern
	if !caseSensitive {
		expr = "(?i)" + pattern
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return ContentReport{}, fmt.Errorf("analyze: invalid pattern %q: %w", pattern, err)
	}
	report := ContentReport{Pattern: pattern, CaseSensitive: caseSensitive, TotalEmails: len(emails)}
	for _, e := range emails {
		if re.MatchString(e.Subject) {
			report.SubjectMatchIDs = append(report.SubjectMatchIDs, e.MessageID)
		}
		if e.HasBody {
			report.EmailsWithBody++
			if re.MatchString(e.Body) {
				report.BodyMatchIDs = append(report.BodyMatchIDs, e.MessageID)
			}
		}
	}
	report.SubjectMatches = len(report.SubjectMatchIDs)
	report.BodyMatches = len(report.BodyMatchIDs)
	return report, nil
}

// Summary renders the report the way the analyze command prints it.
func (r ContentReport) Summary() string {
	s := fmt.Sprintf("Content analysis for pattern: '%s'\n", r.Pattern)
	s += fmt.Sprintf("  Total emails analyzed: %d\n", r.TotalEmails)
	s += fmt.Sprintf("  Emails with bodies: %d\n", r.EmailsWithBody)
	s += fmt.Sprintf("  Matches in subjects: %d/%d (%.1f%%)\n", r.SubjectMatches, r.TotalEmails, percent(r.SubjectMatches, r.TotalEmails))
	if r.EmailsWithBody > 0 {
		s += fmt.Sprintf("  Matches in bodies: %d/%d (%.1f%%)\n", r.BodyMatches, r.EmailsWithBody, percent(r.BodyMatches, r.EmailsWithBody))
	}
	return s
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func analyzeTool(opts Options) tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "analyze",
			Category:    tool.CategoryAnalyzer,
			Description: "Count regex matches in subjects and bodies",
			Source:      Source,
			Params: tool.Schema{
				"pattern":        {Type: tool.TypeString, Default: DefaultPattern},
				"case_sensitive": {Type: tool.TypeBool, Default: false},
				"format":         {Type: tool.TypeString},
			},
		},
		Fn: func(_ context.Context, inv tool.Invocation) (tool.Outcome, error) {
			in, err := singleInput("analyze", inv)
			if err != nil {
				return tool.Outcome{}, err
			}
			emails, err := dataset.Load(in)
			if err != nil {
				return tool.Outcome{}, err
			}
			report, err := AnalyzeContent(emails, stringParam(inv.Params, "pattern"), boolParam(inv.Params, "case_sensitive"))
			if err != nil {
				return tool.Outcome{}, err
			}
			fmt.Fprint(stdout(inv), report.Summary())
			outcome := tool.Outcome{Message: fmt.Sprintf("%d subject / %d body matches", report.SubjectMatches, report.BodyMatches)}
			if out := firstOutput(inv); out != "" {
				if _, err := dataset.WriteFile(out, report, outputFormat(opts, inv.Params, out)); err != nil {
					return tool.Outcome{}, err
				}
				outcome.Outputs = []string{out}
			}
			return outcome, nil
		},
	}
}
