package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/thunder-muscle/internal/dataset"
	"github.com/kingrea/thunder-muscle/internal/tool"
)

// DomainCount pairs a sender domain with its message count.
type DomainCount struct {
	Domain string `json:"domain" yaml:"domain"`
	Count  int    `json:"count" yaml:"count"`
}

// DatasetStats summarizes a dataset.
type DatasetStats struct {
	TotalEmails    int            `json:"total_emails" yaml:"total_emails"`
	EmailsWithBody int            `json:"emails_with_body" yaml:"emails_with_body"`
	UniqueDomains  int            `json:"unique_domains" yaml:"unique_domains"`
	FirstYear      string         `json:"first_year" yaml:"first_year"`
	LastYear       string         `json:"last_year" yaml:"last_year"`
	Years          map[string]int `json:"years" yaml:"years"`
	Folders        map[string]int `json:"folders" yaml:"folders"`
	TopDomains     []DomainCount  `json:"top_domains" yaml:"top_domains"`
}

// Header implements dataset.Tabular by flattening the top domains.
func (s DatasetStats) Header() []string { return []string{"domain", "count"} }

// Rows implements dataset.Tabular.
func (s DatasetStats) Rows() [][]string {
	rows := make([][]string, 0, len(s.TopDomains))
	for _, d := range s.TopDomains {
		rows = append(rows, []string{d.Domain, fmt.Sprint(d.Count)})
	}
	return rows
}

// ComputeStats counts domains, years and folders. top limits TopDomains;
// ties are broken by domain name.
func ComputeStats(emails []dataset.Email, top int) DatasetStats {
	domains := map[string]int{}
	stats := DatasetStats{
		TotalEmails: len(emails),
		Years:       map[string]int{},
		Folders:     map[string]int{},
	}
	for _, e := range emails {
		domain := e.FromDomain
		if domain == "" {
			domain = "unknown"
		}
		domains[domain]++
		stats.Years[e.Year()]++
		folder := e.Folder
		if folder == "" {
			folder = "unknown"
		}
		stats.Folders[folder]++
		if e.HasBody {
			stats.EmailsWithBody++
		}
	}
	stats.UniqueDomains = len(domains)
	for year := range stats.Years {
		if stats.FirstYear == "" || year < stats.FirstYear {
			stats.FirstYear = year
		}
		if year > stats.LastYear {
			stats.LastYear = year
		}
	}
	counts := make([]DomainCount, 0, len(domains))
	for domain, count := range domains {
		counts = append(counts, DomainCount{Domain: domain, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Domain < counts[j].Domain
	})
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}
	stats.TopDomains = counts
	return stats
}

// Summary renders the statistics block printed by the stats command.
func (s DatasetStats) Summary() string {
	var b strings.Builder
	b.WriteString("Dataset Statistics:\n")
	fmt.Fprintf(&b, "  Total emails: %d\n", s.TotalEmails)
	fmt.Fprintf(&b, "  Emails with bodies: %d\n", s.EmailsWithBody)
	fmt.Fprintf(&b, "  Unique domains: %d\n", s.UniqueDomains)
	if s.TotalEmails > 0 {
		fmt.Fprintf(&b, "  Date range: %s to %s\n", s.FirstYear, s.LastYear)
	}
	fmt.Fprintf(&b, "\nTop %d domains:\n", len(s.TopDomains))
	for _, d := range s.TopDomains {
		fmt.Fprintf(&b, "    %s: %d\n", d.Domain, d.Count)
	}
	return b.String()
}

func statsTool(opts Options) tool.Tool {
	return tool.Func{
		Desc: tool.Descriptor{
			Name:        "stats",
			Category:    tool.CategoryAnalyzer,
			Description: "Show dataset statistics and top sender domains",
			Source:      Source,
			Params: tool.Schema{
				"top":    {Type: tool.TypeInt, Default: 10},
				"format": {Type: tool.TypeString},
			},
		},
		Fn: func(_ context.Context, inv tool.Invocation) (tool.Outcome, error) {
			in, err := singleInput("stats", inv)
			if err != nil {
				return tool.Outcome{}, err
			}
			emails, err := dataset.Load(in)
			if err != nil {
				return tool.Outcome{}, err
			}
			top := intParam(inv.Params, "top")
			if top <= 0 {
				top = 10
			}
			stats := ComputeStats(emails, top)
			fmt.Fprint(stdout(inv), stats.Summary())
			outcome := tool.Outcome{Message: fmt.Sprintf("%d emails, %d domains", stats.TotalEmails, stats.UniqueDomains)}
			if out := firstOutput(inv); out != "" {
				if _, err := dataset.WriteFile(out, stats, outputFormat(opts, inv.Params, out)); err != nil {
					return tool.Outcome{}, err
				}
				outcome.Outputs = []string{out}
			}
			return outcome, nil
		},
	}
}
