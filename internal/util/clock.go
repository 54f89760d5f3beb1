package util

import "time"

// Clock returns the current time. Business timestamps are always taken from
// a Clock so the time zone is configuration and tests can pin the time.
type Clock func() time.Time

// NewClock returns a wall clock reporting times in loc.
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return func() time.Time {
		return time.Now().In(loc)
	}
}

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
