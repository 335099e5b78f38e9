package domain

import (
	"strings"
	"time"
)

// Cycle lengths used when predicting the next heat window.
const (
	EstrousCycleDays   = 21
	PostpartumHeatDays = 80
)

const defaultGestationDays = 280

var gestationBySpecies = map[string]int{
	"cattle": 283,
	"goat":   150,
	"sheep":  147,
}

// GestationDays returns the pregnancy length used for due-date arithmetic.
// Unknown species fall back to 280 days.
func GestationDays(species string) int {
	if days, ok := gestationBySpecies[strings.ToLower(strings.TrimSpace(species))]; ok {
		return days
	}
	return defaultGestationDays
}

// ExpectedDeliveryDate adds the species gestation length to the insemination date.
func ExpectedDeliveryDate(species string, inseminationDate time.Time) time.Time {
	return AddDays(inseminationDate, GestationDays(species))
}

// Date truncates t to a calendar date at UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar date days after t.
func AddDays(t time.Time, days int) time.Time {
	return Date(t).AddDate(0, 0, days)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, Invalid("date", "%q is not a YYYY-MM-DD date", s)
	}
	return t, nil
}

// DatePtr returns a pointer to the calendar date of t.
func DatePtr(t time.Time) *time.Time {
	d := Date(t)
	return &d
}
