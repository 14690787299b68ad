package models

import "time"

// DateLayout is the calendar-day key format used in quiz records.
const DateLayout = "2006-01-02"

// CalendarDay returns the YYYY-MM-DD key of t in loc.
func CalendarDay(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
