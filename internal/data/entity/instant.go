package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Instant is a timestamp read from the wire. Zoned is false when the source
// carried no UTC offset; such values are read as wall clock time in the
// location passed to ParseInstant.
type Instant struct {
	Time  time.Time
	Zoned bool
}

// ParseInstant parses an ISO-8601 timestamp with or without an offset.
func ParseInstant(s string, loc *time.Location) (Instant, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Instant{Time: t, Zoned: true}, nil
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Instant{Time: t, Zoned: false}, nil
		}
	}
	return Instant{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, s)
}

// ClockTime is a time of day with minute precision, e.g. a working-hours bound.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// SinceMidnight returns the offset of c from the start of a day.
func (c ClockTime) SinceMidnight() time.Duration {
	return time.Duration(c.Hour)*time.Hour + time.Duration(c.Minute)*time.Minute
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// TimeOfDay returns how far t is past midnight in its own location.
func TimeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}
