package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Collapse whitespace, uppercase the first letters, remove trailing period.
// Remote calendars ship titles with folded-line junk in them.
func CleanupString(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = cases.Title(language.English, cases.NoLower).String(s)
	return strings.TrimSuffix(s, ".")
}
