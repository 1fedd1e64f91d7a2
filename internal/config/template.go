package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15-04-05"
)

// ExpandTemplate substitutes <home>, <date> (YYYY-MM-DD) and <time>
// (HH-MM-SS) in s. It is used for CSV paths and device commands alike.
func ExpandTemplate(s string, now time.Time, home string) string {
	r := strings.NewReplacer(
		"<home>", home,
		"<date>", now.Format(dateLayout),
		"<time>", now.Format(timeLayout),
	)
	return r.Replace(s)
}

// CSVFilename expands a csvpath template and converts its forward slashes
// to the platform separator.
func CSVFilename(tmpl string, now time.Time, home string) string {
	return filepath.FromSlash(ExpandTemplate(tmpl, now, home))
}
