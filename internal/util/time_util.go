package util

import (
	"time"
)

const layout = "2006-01-02"

func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func DateLte(t1, t2 time.Time) bool {
	return t1.Before(t2) || t1.Format(layout) == t2.Format(layout)
}

// DayOf truncates t to UTC midnight.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LastWeekday returns the most recent full trading weekday relative to now.
// Mornings shift back a day first, since weightings for the current session
// are not published yet.
func LastWeekday(now time.Time) time.Time {
	if now.Hour() < 12 {
		now = now.AddDate(0, 0, -1)
	}

	weekdayDiff := 0
	switch now.Weekday() {
	case time.Saturday:
		weekdayDiff = 1
	case time.Sunday:
		weekdayDiff = 2
	}

	return DayOf(now.AddDate(0, 0, -weekdayDiff))
}
