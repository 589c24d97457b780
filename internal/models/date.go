package models

import "time"

const DateLayout = "2006-01-02"

// ParseDate accepts only YYYY-MM-DD strings naming a real calendar day.
func ParseDate(s string) (time.Time, bool) {
	if len(s) != len(DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DayIn formats the calendar day of t as seen in loc.
func DayIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// AddDays shifts a YYYY-MM-DD date by n days. Invalid input is returned as is.
func AddDays(date string, n int) string {
	t, ok := ParseDate(date)
	if !ok {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}

// At combines a date and an HH:MM hour into an instant in loc.
func At(date, hour string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DateLayout+" 15:04", date+" "+hour, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
