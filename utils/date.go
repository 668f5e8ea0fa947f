package utils

import "time"

// DateFormat is the wire/storage format for calendar dates.
const DateFormat = "2006-01-02"

// ToDate drops the time-of-day part, leaving a calendar date at midnight UTC.
// Lots and rate cache keys operate on calendar dates only.
func ToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Today() time.Time {
	return ToDate(time.Now())
}

func IsToday(t time.Time) bool {
	return ToDate(t).Equal(Today())
}

func FormatDate(t time.Time) string {
	return ToDate(t).Format(DateFormat)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, err
	}
	return ToDate(t), nil
}
