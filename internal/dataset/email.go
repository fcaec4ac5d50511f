// Package dataset holds the extracted mail metadata records and the
// json/csv/yaml writers used for datasets and analysis reports.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Email is one extracted message. Field names follow the on-disk dataset.
type Email struct {
	MessageID  string `json:"message_id" yaml:"message_id"`
	Date       string `json:"date" yaml:"date"`
	From       string `json:"from" yaml:"from"`
	FromDomain string `json:"from_domain" yaml:"from_domain"`
	To         string `json:"to" yaml:"to"`
	Subject    string `json:"subject" yaml:"subject"`
	Folder     string `json:"folder" yaml:"folder"`
	Body       string `json:"body" yaml:"body"`
	HasBody    bool   `json:"has_body" yaml:"has_body"`
}

// Year returns the first four characters of Date, or "unknown".
func (e Email) Year() string {
	if len(e.Date) >= 4 {
		return e.Date[:4]
	}
	return "unknown"
}

// Load reads a JSON dataset file.
func Load(path string) ([]Email, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("dataset: %s is empty", path)
	}
	var emails []Email
	if err := json.Unmarshal(data, &emails); err != nil {
		return nil, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	return emails, nil
}

func (e Email) row() []string {
	return []string{e.MessageID, e.Date, e.From, e.FromDomain, e.To, e.Subject, e.Folder, e.Body, fmt.Sprint(e.HasBody)}
}

var emailHeader = []string{"message_id", "date", "from", "from_domain", "to", "subject", "folder", "body", "has_body"}
