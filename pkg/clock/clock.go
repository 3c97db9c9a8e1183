// Package clock provides a Clock interface around time.Now(), so that
// created_at / oldest_record_time-adjacent logic (Storage's uptime, in
// particular) can be driven by a fake clock in tests.
package clock

import "time"

// Clock is an abstraction around the current time of day.
type Clock interface {
	// Now returns the current time. Equivalent to time.Now().
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System is a Clock backed by the operating system's clock.
var System Clock = systemClock{}
