package dates

import (
	"fmt"
	"regexp"
	"time"
)

const dayLayout = "2006-01-02"

// Cadence is the scene-selection granularity: one winning scene is kept
// per cadence interval.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
)

// ParseCadence validates a user-supplied cadence string.
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(s) {
	case CadenceDaily, CadenceWeekly, CadenceMonthly:
		return Cadence(s), nil
	}
	return "", fmt.Errorf("invalid cadence %q (want daily, weekly or monthly)", s)
}

// IntervalKey maps a timestamp to its cadence bucket: calendar day,
// ISO week, or calendar month, all in UTC. Two timestamps share a key
// iff they fall in the same interval.
func IntervalKey(t time.Time, cadence Cadence) (string, error) {
	u := t.UTC()
	switch cadence {
	case CadenceDaily:
		return u.Format(dayLayout), nil
	case CadenceWeekly:
		year, week := u.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week), nil
	case CadenceMonthly:
		return u.Format("2006-01"), nil
	}
	return "", fmt.Errorf("invalid cadence %q", cadence)
}

// Range is an inclusive date range in YYYY-MM-DD form.
type Range struct {
	Start string
	End   string
}

// SubdivideRange splits [start, end] into consecutive inclusive chunks
// of at most maxMonths each. The first chunk starts at start, the last
// ends exactly at end, and the chunks are gapless and non-overlapping.
func SubdivideRange(start, end string, maxMonths int) ([]Range, error) {
	if maxMonths <= 0 {
		return nil, fmt.Errorf("maxMonths must be positive, got %d", maxMonths)
	}
	startDt, err := time.Parse(dayLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	endDt, err := time.Parse(dayLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if endDt.Before(startDt) {
		return nil, fmt.Errorf("end date %s before start date %s", end, start)
	}

	var chunks []Range
	cur := startDt
	for !cur.After(endDt) {
		chunkEnd := cur.AddDate(0, maxMonths, 0).AddDate(0, 0, -1)
		if chunkEnd.After(endDt) {
			chunkEnd = endDt
		}
		chunks = append(chunks, Range{cur.Format(dayLayout), chunkEnd.Format(dayLayout)})
		cur = chunkEnd.AddDate(0, 0, 1)
	}
	return chunks, nil
}

var (
	filenameDateRe  = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})_`)
	filenameSceneRe = regexp.MustCompile(`\d{8}_(\d+)_`)
)

// DateFromFilename extracts the acquisition date from a provider product
// filename as YYYY_MM_DD, or "" when the name carries no date.
func DateFromFilename(name string) string {
	m := filenameDateRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1] + "_" + m[2] + "_" + m[3]
}

// SceneIDFromFilename extracts the scene identifier from a provider
// product filename, or "" when none is present.
func SceneIDFromFilename(name string) string {
	m := filenameSceneRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// WeekStart returns the Sunday starting the week of a YYYY_MM_DD date,
// in the same format. Used for grouping downloaded files into weekly
// folders, not for selection bucketing.
func WeekStart(dateStr string) string {
	t, err := time.Parse("2006_01_02", dateStr)
	if err != nil {
		return dateStr
	}
	days := int(t.Weekday()) // Sunday == 0
	return t.AddDate(0, 0, -days).Format("2006_01_02")
}
