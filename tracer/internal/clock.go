package internal

import "time"

// clock provides time.
type clock interface {
	now() time.Time
}

// defaultClock is the wall clock.
type defaultClock struct{}

func (t *defaultClock) now() time.Time {
	return time.Now()
}
