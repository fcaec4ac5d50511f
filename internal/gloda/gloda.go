// Package gloda reads message metadata out of a mail client profile's
// global full-text index (global-messages-db.sqlite).
package gloda

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kingrea/thunder-muscle/internal/dataset"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the index file inside a profile directory.
const DatabaseFile = "global-messages-db.sqlite"

const extractQuery = `
SELECT
	m.headerMessageID,
	datetime(m.date/1000000, 'unixepoch') AS date_formatted,
	t.c3author AS from_field,
	t.c4recipients AS to_field,
	t.c1subject AS subject,
	t.c0body AS body_text,
	fl.name AS folder_path
FROM messages m
LEFT JOIN messagesText_content t ON m.id = t.docid
LEFT JOIN folderLocations fl ON m.folderID = fl.id
ORDER BY m.date DESC`

// ErrNoDatabase is returned when the profile has no index database.
var ErrNoDatabase = errors.New("gloda: database not found")

// Summary describes one extraction.
type Summary struct {
	Total    int
	WithBody int
	Filtered int
}

// DatabasePath returns the index location for a profile directory.
func DatabasePath(profileDir string) string {
	return filepath.Join(profileDir, DatabaseFile)
}

// Extract reads every message from the profile's index, newest first, and
// drops those matched by filters.
func Extract(ctx context.Context, profileDir string, filters Filters) ([]dataset.Email, Summary, error) {
	path := DatabasePath(profileDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Summary{}, fmt.Errorf("%w at %s", ErrNoDatabase, path)
		}
		return nil, Summary{}, fmt.Errorf("gloda: stat %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, Summary{}, fmt.Errorf("gloda: open %s: %w", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, extractQuery)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("gloda: query %s: %w", path, err)
	}
	defer rows.Close()

	var (
		emails    []dataset.Email
		summary   Summary
		filtering = !filters.Empty()
	)
	for rows.Next() {
		var msgID, date, from, to, subject, body, folder sql.NullString
		if err := rows.Scan(&msgID, &date, &from, &to, &subject, &body, &folder); err != nil {
			return nil, Summary{}, fmt.Errorf("gloda: scan row: %w", err)
		}
		email := dataset.Email{
			MessageID:  normalizeMessageID(msgID.String),
			Date:       date.String,
			From:       from.String,
			FromDomain: ExtractDomain(from.String),
			To:         to.String,
			Subject:    subject.String,
			Folder:     folder.String,
			Body:       body.String,
			HasBody:    body.String != "",
		}
		if filtering && filters.Excludes(email) {
			summary.Filtered++
			continue
		}
		if email.HasBody {
			summary.WithBody++
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, Summary{}, fmt.Errorf("gloda: iterate rows: %w", err)
	}
	summary.Total = len(emails)
	return emails, summary, nil
}

func normalizeMessageID(id string) string {
	if id == "" || strings.HasPrefix(id, "<") {
		return id
	}
	return "<" + id + ">"
}

var (
	addressPattern = regexp.MustCompile(`<([^>]+)>|([^\s<>]+@[^\s<>]+)`)
	domainPattern  = regexp.MustCompile(`@([a-zA-Z0-9.-]+)`)
)

// ExtractDomain returns the lower-cased sender domain of an address field,
// "unknown" for an empty field and "malformed" when no domain is found.
func ExtractDomain(address string) string {
	if strings.TrimSpace(address) == "" {
		return "unknown"
	}
	match := addressPattern.FindStringSubmatch(address)
	if match == nil {
		return "malformed"
	}
	clean := match[1]
	if clean == "" {
		clean = match[2]
	}
	domain := domainPattern.FindStringSubmatch(clean)
	if domain == nil {
		return "malformed"
	}
	return strings.ToLower(domain[1])
}
