// Package dateutil holds the calendar arithmetic behind the default
// reporting window and the validation of user-selected date ranges.
package dateutil

import (
	"errors"
	"fmt"
	"time"
)

// ISO is the wire format for dates in forms and query binds.
const ISO = "2006-01-02"

var (
	ErrStartAfterEnd = errors.New("start date is after end date")
	ErrEndInFuture   = errors.New("end date is in the future")
	ErrBeforeFloor   = errors.New("start date is before the earliest available data")
	ErrMalformedDate = errors.New("malformed date")
)

// SubtractMonth returns the same day one calendar month earlier, with the
// day clipped to the length of the target month (Mar 31 -> Feb 28, or
// Feb 29 in leap years).
func SubtractMonth(t time.Time) time.Time {
	year, month := t.Year(), t.Month()-1
	if month < time.January {
		month = time.December
		year--
	}
	// Day 0 of the following month is the last day of the target month.
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the initial dashboard selection: the range ending
// on the last day of the month before today and starting one calendar
// month earlier.
func DefaultWindow(today time.Time) DateRange {
	end := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, 0, -1)
	return DateRange{Start: SubtractMonth(end), End: end}
}

// ParseRange parses two ISO dates into a DateRange without validating it.
func ParseRange(start, end string) (DateRange, error) {
	s, err := time.Parse(ISO, start)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %q", ErrMalformedDate, start)
	}
	e, err := time.Parse(ISO, end)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: %q", ErrMalformedDate, end)
	}
	return DateRange{Start: s, End: e}, nil
}

// Validate enforces floor <= Start <= End <= today. Both bounds must be
// re-checked together: moving one selector can invalidate the other.
func (r DateRange) Validate(today, floor time.Time) error {
	if r.Start.After(r.End) {
		return ErrStartAfterEnd
	}
	if r.End.After(truncate(today)) {
		return ErrEndInFuture
	}
	if r.Start.Before(truncate(floor)) {
		return ErrBeforeFloor
	}
	return nil
}

func (r DateRange) String() string {
	return r.Start.Format(ISO) + " to " + r.End.Format(ISO)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
