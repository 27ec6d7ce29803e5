package engine

import "time"

// NextLocalTime returns today's hour:minute in loc, or tomorrow's when that
// moment is already behind now. Exactly now counts as today.
func NextLocalTime(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if t.Before(local) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// LFDReminderTime returns local midnight daysBefore days ahead of lfd. It
// reports false when that date is not strictly after today in loc. lfd is a
// calendar date; only its year, month and day are used.
func LFDReminderTime(lfd time.Time, daysBefore int, now time.Time, loc *time.Location) (time.Time, bool) {
	remind := time.Date(lfd.Year(), lfd.Month(), lfd.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -daysBefore)
	if !remind.After(LocalMidnight(now, loc)) {
		return time.Time{}, false
	}
	return remind, true
}

// LocalMidnight is the start of now's calendar day in loc.
func LocalMidnight(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// DaysUntil counts calendar days from today in loc to the date of day.
func DaysUntil(day time.Time, now time.Time, loc *time.Location) int {
	target := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	today := LocalMidnight(now, loc)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(target.Sub(from).Hours() / 24)
}
