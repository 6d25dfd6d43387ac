package extraction

import (
	"regexp"
	"strconv"
	"time"
)

const (
	isoDate = "2006-01-02"

	minYear = 2020
	maxYear = 2030
)

const dateToken = `(\d{1,2}[/.\-]\d{1,2}[/.\-]\d{2,4}|\d{4}[/.\-]\d{1,2}[/.\-]\d{1,2})`

// Most specific first. Only the leftmost match of each pattern is considered.
var datePatterns = []pattern[string]{
	{
		name:  "issued",
		re:    regexp.MustCompile(`(?i)(?:תאריך\s+(?:הדפסה|הנפקה|הפקה)|הופקה?(?:\s+בתאריך|\s+ב-?)?|הונפקה?(?:\s+בתאריך|\s+ב-?)?|print(?:ed)?(?:\s+on|\s+date)?|issued?(?:\s+on|\s+date)?)\s*[:\-]?\s*` + dateToken),
		parse: parseDate,
	},
	{
		name:  "labelled",
		re:    regexp.MustCompile(`(?i)(?:תאריך|date)\s*[:\-]?\s*` + dateToken),
		parse: parseDate,
	},
	{
		name:  "day-first",
		re:    regexp.MustCompile(`(?:^|[^\d])(\d{1,2}[/.\-]\d{1,2}[/.\-](?:\d{4}|\d{2}))(?:[^\d]|$)`),
		parse: parseDate,
	},
	{
		name:  "year-first",
		re:    regexp.MustCompile(`(?:^|[^\d])(\d{4}[/.\-]\d{1,2}[/.\-]\d{1,2})(?:[^\d]|$)`),
		parse: parseDate,
	},
}

var (
	dateNoise      = regexp.MustCompile(`[^\d/.\-]`)
	dateSeparators = regexp.MustCompile(`[/.\-]+`)
)

// parseDate reads a D/M/Y, Y/M/D or D/M/YY token and returns it as an ISO
// date. Dates outside 2020-2030 or that do not exist in the calendar are
// rejected.
func parseDate(raw string) (string, bool) {
	parts := dateSeparators.Split(dateNoise.ReplaceAllString(raw, ""), -1)
	if len(parts) != 3 {
		return "", false
	}

	var dayPart, monthPart, yearPart string
	shortYear := false
	switch {
	case len(parts[2]) == 4:
		dayPart, monthPart, yearPart = parts[0], parts[1], parts[2]
	case len(parts[0]) == 4:
		yearPart, monthPart, dayPart = parts[0], parts[1], parts[2]
	default:
		dayPart, monthPart, yearPart = parts[0], parts[1], parts[2]
		shortYear = true
	}

	day, err := strconv.Atoi(dayPart)
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil {
		return "", false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return "", false
	}
	if shortYear {
		year += 2000
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year < minYear || year > maxYear {
		return "", false
	}

	// Built in UTC so formatting never shifts the day.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return "", false
	}
	return t.Format(isoDate), true
}

// ExtractDate returns the document date as YYYY-MM-DD.
func ExtractDate(text string) (string, bool) {
	return firstOf(text, datePatterns, false)
}
