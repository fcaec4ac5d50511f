package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatYAML = "yaml"
)

// Tabular is implemented by reports that know how to flatten themselves
// into CSV rows.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// DetectFormat maps a file extension to a format, defaulting to json.
func DetectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// NormalizeFormat validates a user-supplied format name.
func NormalizeFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("dataset: unsupported format %q", format)
	}
}

// WriteFile writes data to path. An empty format is detected from the
// extension. It returns the format used.
func WriteFile(path string, data any, format string) (string, error) {
	if format == "" {
		format = DetectFormat(path)
	}
	format, err := NormalizeFormat(format)
	if err != nil {
		return "", err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("dataset: ensure dir for %s: %w", path, err)
		}
	}
	var payload []byte
	switch format {
	case FormatJSON:
		payload, err = json.MarshalIndent(data, "", "  ")
		if err == nil {
			payload = append(payload, '\n')
		}
	case FormatYAML:
		payload, err = yaml.Marshal(data)
	case FormatCSV:
		payload, err = encodeCSV(data)
	}
	if err != nil {
		return "", fmt.Errorf("dataset: encode %s as %s: %w", path, format, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("dataset: write %s: %w", path, err)
	}
	return format, nil
}

func encodeCSV(data any) ([]byte, error) {
	header, rows, err := tabulate(data)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return []byte{}, nil
	}
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func tabulate(data any) ([]string, [][]string, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil, nil
	case Tabular:
		return v.Header(), v.Rows(), nil
	case []Email:
		if len(v) == 0 {
			return nil, nil, nil
		}
		rows := make([][]string, 0, len(v))
		for _, e := range v {
			rows = append(rows, e.row())
		}
		return emailHeader, rows, nil
	case []map[string]any:
		return tabulateMaps(v)
	case map[string]any:
		return tabulateMaps([]map[string]any{v})
	default:
		return []string{"value"}, [][]string{{fmt.Sprint(v)}}, nil
	}
}

func tabulateMaps(records []map[string]any) ([]string, [][]string, error) {
	if len(records) == 0 {
		return nil, nil, nil
	}
	header := make([]string, 0, len(records[0]))
	for key := range records[0] {
		header = append(header, key)
	}
	sort.Strings(header)
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		row := make([]string, len(header))
		for i, key := range header {
			if value, ok := record[key]; ok && value != nil {
				row[i] = fmt.Sprint(value)
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
