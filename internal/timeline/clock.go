package timeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ISODate is the date layout used throughout the store.
const ISODate = "2006-01-02"

// ParseClock parses a wall-clock string in HH:MM form.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("parse clock %q: out of range", s)
	}
	return hour, minute, nil
}

// At places a HH:MM clock string on the given calendar day.
func At(day time.Time, clock string) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location()), nil
}

// Window builds the waking window [wake, sleep) on the given day.
func Window(day time.Time, wake, sleep string) (start, end time.Time, err error) {
	if start, err = At(day, wake); err != nil {
		return
	}
	end, err = At(day, sleep)
	return
}

// Weekday returns the day of week (0=Sunday..6=Saturday) for an ISO date.
// The date is anchored at local noon so midnight/timezone rounding cannot
// shift it into a neighboring day.
func Weekday(isoDate string) (int, error) {
	t, err := time.ParseInLocation(ISODate, isoDate, time.Local)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", isoDate, err)
	}
	return int(t.Add(12 * time.Hour).Weekday()), nil
}

// OffsetFor maps an app timezone shorthand to a sqlite datetime modifier.
func OffsetFor(tz string) string {
	if tz == "Beijing" {
		return "+8 hours"
	}
	return "-7 hours" // PST
}

// JoinTitle combines an activity name with an optional sub-activity name.
func JoinTitle(activity, subActivity string) string {
	if subActivity == "" {
		return activity
	}
	return activity + " / " + subActivity
}
