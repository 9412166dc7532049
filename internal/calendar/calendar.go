// Package calendar holds the date and wall-clock primitives used for slots.
// Dates are civil dates with no zone; a Clock is minutes since midnight.
package calendar

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

const minutesPerDay = 24 * 60

// Clock is a wall-clock time of day with minute precision, rendered "HH:MM".
type Clock int

// ParseClock parses a strict "HH:MM" 24-hour value.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("calendar: invalid time %q: want HH:MM", s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("calendar: invalid time %q: want HH:MM", s)
	}
	return Clock(h*60 + m), nil
}

// MustClock is ParseClock for literals; it panics on bad input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

// ClockOf returns the wall clock of t in its own location, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock(t.Hour()*60 + t.Minute())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Valid reports whether c lies within a single day.
func (c Clock) Valid() bool { return c >= 0 && c < minutesPerDay }

// Aligned reports whether c falls on a slot boundary of the given granularity.
func (c Clock) Aligned(granularity time.Duration) bool {
	step := int(granularity / time.Minute)
	if step <= 0 {
		return false
	}
	return int(c)%step == 0
}

// Add returns c shifted by d. The result may leave the day; check Valid.
func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d/time.Minute)
}

func (c Clock) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("calendar: clock %d out of range", int(c))
	}
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ValidateGranularity checks that g is a positive whole number of minutes
// dividing the day evenly.
func ValidateGranularity(g time.Duration) error {
	if g <= 0 || g%time.Minute != 0 {
		return fmt.Errorf("calendar: granularity %s must be a positive whole number of minutes", g)
	}
	if minutesPerDay%int(g/time.Minute) != 0 {
		return fmt.Errorf("calendar: granularity %s must divide 24h", g)
	}
	return nil
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("calendar: invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// Today is the civil date of now in loc.
func Today(now time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(now.In(loc))
}

// Weekday of a civil date.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Instant resolves a civil date and clock to an absolute time in loc.
func Instant(d civil.Date, c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, int(c)/60, int(c)%60, 0, 0, loc)
}

// CompareDates orders two civil dates: -1, 0 or 1.
func CompareDates(a, b civil.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
