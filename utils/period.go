package utils

import (
	"time"
)

// PeriodStart returns UTC midnight of the calendar day that lies the given number of years, months and
// days before the calendar day of now (in now's own location).
func PeriodStart(now time.Time, years, months, days int) time.Time {
	return truncateToDay(now).AddDate(-years, -months, -days)
}

// WeekdaysBetween counts Monday-to-Friday days in the inclusive range [from, to]. It is a rough upper
// bound on trading days, which also exclude exchange holidays.
func WeekdaysBetween(from, to time.Time) int {
	count := 0
	for d := truncateToDay(from); !d.After(truncateToDay(to)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			count++
		}
	}
	return count
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
