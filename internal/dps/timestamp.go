package dps

import (
	"fmt"
	"strings"
	"time"
)

const (
	// TimestampLayout is the dhEmi format (local time with offset)
	TimestampLayout = "2006-01-02T15:04:05-07:00"
	// DateLayout is the dCompet format
	DateLayout = "2006-01-02"
)

// Brasilia is the fixed -03:00 offset applied to bare dates
var Brasilia = time.FixedZone("BRT", -3*3600)

// ParseIssueDate accepts YYYY-MM-DD, DD/MM/YYYY or a full timestamp.
// Bare dates resolve to midnight at -03:00.
func ParseIssueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, s, Brasilia); err == nil {
			return t, nil
		}
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or DD/MM/YYYY", s)
}

// FormatTimestamp renders t as dhEmi
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
