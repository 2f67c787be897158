// Package schedule maps wall-clock time to day indexes and day indexes to
// question ids. Everything here is a pure function of its inputs so every
// replica computes the same day and the same questions without coordination.
package schedule

import "time"

const day = 24 * time.Hour

// DayIndex returns floor((now - epoch) / 24h) + 1, never less than 1.
// Both instants are compared as absolute times, so the local zone is irrelevant.
func DayIndex(now, epoch time.Time) int {
	elapsed := now.Sub(epoch)
	if elapsed < 0 {
		return 1
	}
	return int(elapsed/day) + 1
}

// Clock binds an epoch to a time source.
type Clock struct {
	Epoch time.Time
	Now   func() time.Time
}

// NewClock returns a clock reading time.Now.
func NewClock(epoch time.Time) Clock {
	return Clock{Epoch: epoch, Now: time.Now}
}

// Today returns the day index for the current instant.
func (c Clock) Today() int {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return DayIndex(now(), c.Epoch)
}
