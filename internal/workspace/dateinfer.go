package workspace

import (
	"regexp"
	"time"
)

var ymdPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// InferDate looks for a YYYY-MM-DD shaped substring in a filename and
// returns it when it parses as a real calendar date. Advisory only: the
// workflow never blocks on a missing or bogus filename date.
func InferDate(filename string) (string, bool) {
	m := ymdPattern.FindString(filename)
	if m == "" {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", m); err != nil {
		return "", false
	}
	return m, true
}
