package service

import (
	"time"

	"go-time-archive/internal/model"
)

// ComputeCutoff returns now minus amount units. Month and year steps are
// calendar steps clamped to the last valid day, so one month before March 31
// is the last day of February. Unknown units count as days.
func ComputeCutoff(clock Clock, unit model.TimeUnit, amount int) time.Time {
	now := clock.Now()

	switch unit {
	case model.UnitMinute:
		return now.Add(-time.Duration(amount) * time.Minute)
	case model.UnitHour:
		return now.Add(-time.Duration(amount) * time.Hour)
	case model.UnitWeek:
		return now.AddDate(0, 0, -7*amount)
	case model.UnitMonth:
		return subtractMonths(now, amount)
	case model.UnitYear:
		return subtractMonths(now, 12*amount)
	default:
		return now.AddDate(0, 0, -amount)
	}
}

func subtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	first := time.Date(year, month-time.Month(months), 1, hour, minute, sec, t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
