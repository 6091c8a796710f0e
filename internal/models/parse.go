package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	usDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	numberPrefix   = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)

	// spreadsheet day zero, accounting for the 1900 leap-year bug
	serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
)

// minSerialDate is the smallest numeric cell value treated as a spreadsheet
// date serial (2009-07-06).
const minSerialDate = 40000

// ParseNumber strips every character except digits, '.' and '-' and parses
// the longest numeric prefix of the remainder, so "15.00-" reads as 15 and
// "1.2.3" as 1.2. A token with no numeric prefix or a zero result is
// reported as absent.
func ParseNumber(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	token := strings.TrimSuffix(numberPrefix.FindString(b.String()), ".")
	if token == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(token)
	if err != nil || d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDecimalFromString parses an amount that may carry a currency symbol,
// thousands separators, or accounting parentheses for negatives.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	s = strings.Trim(s, "()")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a statement date cell. Accepted forms are M/D/YYYY,
// YYYY-M-D, spreadsheet serial numbers above 40000 and a set of common
// layouts. The result is a UTC calendar day.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	if m := usDatePattern.FindStringSubmatch(s); m != nil {
		return calendarDate(m[3], m[1], m[2])
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return calendarDate(m[1], m[2], m[3])
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n > minSerialDate {
			return serialEpoch.AddDate(0, 0, int(n)), nil
		}
		return time.Time{}, fmt.Errorf("unable to parse date '%s': numeric value is not a date serial", s)
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"01/02/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/06",
		"1-2-2006",
		"1-2-06",
		"2006/1/2",
		"Jan 2, 2006",
		"January 2, 2006",
		"02-Jan-2006",
	}

	var lastErr error
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return Day(t), nil
		}
		lastErr = err
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

func calendarDate(year, month, day string) (time.Time, error) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, fmt.Errorf("invalid calendar date %s-%s-%s", year, month, day)
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return time.Time{}, fmt.Errorf("invalid calendar date %s-%s-%s", year, month, day)
	}
	return t, nil
}
