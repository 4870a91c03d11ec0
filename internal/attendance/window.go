package attendance

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var clockLayouts = []string{"15:04:05", "15:04"}

// WithinWindow reports whether now falls inside [start, end] of the session's
// scheduled day. Both bounds are resolved in loc. Unparseable input rejects.
func WithinWindow(now time.Time, date, startTime, endTime string, loc *time.Location) bool {
	start, end, err := SessionBounds(date, startTime, endTime, loc)
	if err != nil {
		return false
	}
	return !now.Before(start) && !now.After(end)
}

// SessionBounds combines a calendar date with wall-clock start/end times in loc.
func SessionBounds(date, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	start, err := atClock(day, startTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := atClock(day, endTime, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start time must precede end time")
	}
	return start, end, nil
}

func atClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	for _, layout := range clockLayouts {
		t, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("parse time %q: want HH:MM or HH:MM:SS", clock)
}
