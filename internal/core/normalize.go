package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"2006/01/02",
}

// serialEpoch is day 0 of spreadsheet serial dates.
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// maxSerialDay is 9999-12-31.
const maxSerialDay = 2958465

// ParseDate reads a date cell: one of dateLayouts or a spreadsheet serial day
// number, whose fraction (time of day) is dropped. Unparseable or empty text
// yields the zero Date.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t)
		}
	}
	if d, err := decimal.NewFromString(s); err == nil {
		days := d.Floor().IntPart()
		if days >= 1 && days <= maxSerialDay {
			return DateOf(serialEpoch.AddDate(0, 0, int(days)))
		}
	}
	return Date{}
}

// ParseFlag reads a boolean cell. Anything not recognised as true is false.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "wahr", "1", "yes", "ja", "y", "x", "on", "✓":
		return true
	default:
		return false
	}
}

// FormatFlag renders a boolean the way spreadsheets expect it.
func FormatFlag(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}
