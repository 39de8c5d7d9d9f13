package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical invoice date format.
const DateLayout = "02/01/2006"

var (
	numericDate = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})\b`)
	dayMonthRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:\s+de)?[\s\-/]+([a-záéíóúñ]{3,10})\.?,?(?:\s+de|\s+del)?[\s\-/]+(\d{4})\b`)
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	monthDayRe  = regexp.MustCompile(`(?i)\b([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
)

var months = map[string]time.Month{
	"enero": 1, "ene": 1, "january": 1, "jan": 1,
	"febrero": 2, "feb": 2, "february": 2,
	"marzo": 3, "mar": 3, "march": 3,
	"abril": 4, "abr": 4, "april": 4, "apr": 4,
	"mayo": 5, "may": 5,
	"junio": 6, "jun": 6, "june": 6,
	"julio": 7, "jul": 7, "july": 7,
	"agosto": 8, "ago": 8, "august": 8, "aug": 8,
	"septiembre": 9, "setiembre": 9, "sep": 9, "sept": 9, "set": 9, "september": 9,
	"octubre": 10, "oct": 10, "october": 10,
	"noviembre": 11, "nov": 11, "november": 11,
	"diciembre": 12, "dic": 12, "december": 12, "dec": 12,
}

// Date finds the first supported date in s and returns it as DD/MM/YYYY.
//
// Accepted shapes: DD/MM/YYYY, DD-MM-YYYY, DD.MM.YYYY, DD/MM/YY (YY >= 50 is
// 19YY, otherwise 20YY), "DD [de] Month [de] YYYY" with Spanish or English
// month names, "Month DD, YYYY" and ISO YYYY-MM-DD. Triples that are not
// calendar dates are skipped.
func Date(s string) (string, bool) {
	for _, m := range numericDate.FindAllStringSubmatch(s, -1) {
		if d, ok := build(m[1], monthNumber(m[2]), m[3]); ok {
			return d, true
		}
	}
	for _, m := range isoDate.FindAllStringSubmatch(s, -1) {
		if d, ok := build(m[3], monthNumber(m[2]), m[1]); ok {
			return d, true
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatch(s, -1) {
		if d, ok := build(m[1], monthName(m[2]), m[3]); ok {
			return d, true
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatch(s, -1) {
		if d, ok := build(m[2], monthName(m[1]), m[3]); ok {
			return d, true
		}
	}
	return "", false
}

// ValidDate reports whether s is a canonical DD/MM/YYYY calendar date that
// re-serializes identically.
func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return false
	}
	return t.Format(DateLayout) == s
}

// DateTime parses a canonical date into a time.Time.
func DateTime(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func build(day string, month time.Month, year string) (string, bool) {
	if month == 0 {
		return "", false
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return "", false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return "", false
	}
	if len(year) == 2 {
		if y >= 50 {
			y += 1900
		} else {
			y += 2000
		}
	}
	t := time.Date(y, month, d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d || t.Month() != month || t.Year() != y {
		return "", false
	}
	return t.Format(DateLayout), true
}

func monthNumber(s string) time.Month {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 12 {
		return 0
	}
	return time.Month(n)
}

func monthName(s string) time.Month {
	return months[strings.ToLower(Fold(s))]
}
