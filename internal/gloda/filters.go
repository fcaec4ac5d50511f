package gloda

import (
	"strings"

	"github.com/kingrea/thunder-muscle/internal/dataset"
)

// Filters drops messages at extraction time. Domain patterns match exactly
// (case-insensitive) or, with a "*." prefix, by suffix.
type Filters struct {
	IgnoreFromDomains  []string `mapstructure:"ignore_from_domains" yaml:"ignore_from_domains,omitempty"`
	IncludeFromDomains []string `mapstructure:"include_from_domains" yaml:"include_from_domains,omitempty"`
	IgnoreToDomains    []string `mapstructure:"ignore_to_domains" yaml:"ignore_to_domains,omitempty"`
	IgnoreFolders      []string `mapstructure:"ignore_folders" yaml:"ignore_folders,omitempty"`
	// DateAfter and DateBefore compare lexically against "YYYY-MM-DD HH:MM:SS".
	DateAfter  string `mapstructure:"date_after" yaml:"date_after,omitempty"`
	DateBefore string `mapstructure:"date_before" yaml:"date_before,omitempty"`
}

// Empty reports whether no filter is configured.
func (f Filters) Empty() bool {
	return len(f.IgnoreFromDomains) == 0 && len(f.IncludeFromDomains) == 0 &&
		len(f.IgnoreToDomains) == 0 && len(f.IgnoreFolders) == 0 &&
		f.DateAfter == "" && f.DateBefore == ""
}

// Excludes reports whether the message should be dropped. An include list
// overrides the ignore list: a domain outside it is always dropped.
func (f Filters) Excludes(email dataset.Email) bool {
	domain := strings.ToLower(email.FromDomain)
	for _, pattern := range f.IgnoreFromDomains {
		if matchDomain(domain, pattern) {
			return true
		}
	}
	if len(f.IncludeFromDomains) > 0 {
		included := false
		for _, pattern := range f.IncludeFromDomains {
			if matchDomain(domain, pattern) {
				included = true
				break
			}
		}
		if !included {
			return true
		}
	}
	to := strings.ToLower(email.To)
	for _, pattern := range f.IgnoreToDomains {
		if p := strings.ToLower(strings.TrimSpace(pattern)); p != "" && strings.Contains(to, p) {
			return true
		}
	}
	folder := strings.ToLower(email.Folder)
	for _, ignored := range f.IgnoreFolders {
		if p := strings.ToLower(strings.TrimSpace(ignored)); p != "" && strings.Contains(folder, p) {
			return true
		}
	}
	if f.DateAfter != "" && email.Date < f.DateAfter {
		return true
	}
	if f.DateBefore != "" && email.Date > f.DateBefore {
		return true
	}
	return false
}

func matchDomain(domain, pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" {
		return false
	}
	if suffix, ok := strings.CutPrefix(p, "*."); ok {
		return strings.HasSuffix(domain, suffix)
	}
	return domain == p
}
