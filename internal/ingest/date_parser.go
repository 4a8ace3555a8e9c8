package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/david/contract-ledger/internal/models"
)

// Day-first numeric layouts come before anything month-first: contracts are
// written in Vietnam and 03/04/2025 means 3 April.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2 January 2006",
	"02 January 2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2-Jan-2006",
	"02-Jan-2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

var (
	vietnameseDateRegex = regexp.MustCompile(`(?i)(?:ngày\s+)?(\d{1,2})\s+tháng\s+(\d{1,2})(?:\s+năm|\s*,|\s*/)?\s+(\d{4})`)
	isoDateRegex        = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayFirstDateRegex   = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4})\b`)
	monthNameDateRegex  = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?,?\s+(\d{4})\b`)
	nameFirstDateRegex  = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

// parseDateRobust reads the date notations found in Vietnamese and English
// hotel contracts and returns a calendar date.
func parseDateRobust(text string) (models.Date, error) {
	text = cleanDateString(text)
	if text == "" {
		return models.Date{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return models.DateOf(t), nil
		}
	}

	if d, ok := parseDateWithRegex(text); ok {
		return d, nil
	}
	return models.Date{}, fmt.Errorf("unable to parse date: %s", text)
}

// parseDateWithRegex finds a date embedded in surrounding words.
func parseDateWithRegex(text string) (models.Date, bool) {
	if m := vietnameseDateRegex.FindStringSubmatch(text); m != nil {
		return dateFromParts(m[3], m[2], m[1])
	}
	if m := isoDateRegex.FindStringSubmatch(text); m != nil {
		return dateFromParts(m[1], m[2], m[3])
	}
	if m := dayFirstDateRegex.FindStringSubmatch(text); m != nil {
		return dateFromParts(m[3], m[2], m[1])
	}
	if m := monthNameDateRegex.FindStringSubmatch(text); m != nil {
		if month, ok := monthNumber(m[2]); ok {
			return dateFromParts(m[3], strconv.Itoa(month), m[1])
		}
	}
	if m := nameFirstDateRegex.FindStringSubmatch(text); m != nil {
		if month, ok := monthNumber(m[1]); ok {
			return dateFromParts(m[3], strconv.Itoa(month), m[2])
		}
	}
	return models.Date{}, false
}

// dateFromParts rejects impossible dates instead of letting time.Date roll
// them over.
func dateFromParts(year, month, day string) (models.Date, bool) {
	y, errY := strconv.Atoi(year)
	m, errM := strconv.Atoi(month)
	d, errD := strconv.Atoi(day)
	if errY != nil || errM != nil || errD != nil {
		return models.Date{}, false
	}
	if m < 1 || m > 12 || d < 1 {
		return models.Date{}, false
	}
	date := models.NewDate(y, time.Month(m), d)
	if date.Time().Day() != d {
		return models.Date{}, false
	}
	return date, true
}

func monthNumber(name string) (int, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || name == full[:3] || (name == "sept" && m == time.September) {
			return int(m), true
		}
	}
	return 0, false
}

// cleanDateString removes common labels in front of a date.
func cleanDateString(s string) string {
	prefixes := []string{
		"Effective date:", "Effective from:", "Valid from:", "Sign date:", "Date:",
		"Ngày hiệu lực:", "Ngày ký:", "Hiệu lực từ:", "Áp dụng từ:", "Từ ngày ", "Đến ngày ",
		"From ", "Until ", "To ",
	}
	s = strings.TrimSpace(s)
	sLower := strings.ToLower(s)
	for _, p := range prefixes {
		pLower := strings.ToLower(p)
		if strings.HasPrefix(sLower, pLower) {
			s = strings.TrimSpace(s[len(pLower):])
			sLower = strings.ToLower(s)
		}
	}
	return normalizeSpace(s)
}
