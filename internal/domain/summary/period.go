package summary

import "time"

// Period boundary math. All boundaries are computed in UTC regardless of the
// caller's location, and month rollover uses calendar arithmetic rather than
// fixed offsets.

// DailyStart returns 00:00:00 UTC of the day containing t.
func DailyStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// WeeklyStart returns the most recent Sunday 00:00:00 UTC at or before t.
func WeeklyStart(t time.Time) time.Time {
	day := DailyStart(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// MonthlyStart returns the first of the month, 00:00:00 UTC.
func MonthlyStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodStart returns the canonical period start for t at the given
// granularity.
func PeriodStart(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeekly:
		return WeeklyStart(t)
	case GranularityMonthly:
		return MonthlyStart(t)
	default:
		return DailyStart(t)
	}
}

// PeriodEnd returns the exclusive end boundary of the period beginning at
// start.
func PeriodEnd(start time.Time, g Granularity) time.Time {
	switch g {
	case GranularityWeekly:
		return start.AddDate(0, 0, 7)
	case GranularityMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// InOpenPeriod reports whether ts falls inside the period containing now at
// the given granularity. Timestamps in closed periods must never mutate an
// existing summary.
func InOpenPeriod(ts, now time.Time, g Granularity) bool {
	start := PeriodStart(now, g)
	end := PeriodEnd(start, g)
	u := ts.UTC()
	return !u.Before(start) && u.Before(end)
}
