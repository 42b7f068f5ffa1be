// Package clock abstracts wall time and deferred callbacks so reminder
// timers can be driven by a virtual clock in tests.
package clock

import (
	"time"
)

// Timer is a cancellation handle for a scheduled callback
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or was already stopped.
	Stop() bool
}

// Clock provides the current time and schedules callbacks at instants
type Clock interface {
	Now() time.Time
	Schedule(at time.Time, fn func()) Timer
}

// Real is backed by the runtime's timers
type Real struct{}

// NewReal returns the system clock
func NewReal() Real {
	return Real{}
}

func (Real) Now() time.Time {
	return time.Now()
}

// Schedule runs fn on its own goroutine once at is reached. Instants in the
// past fire immediately.
func (Real) Schedule(at time.Time, fn func()) Timer {
	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, fn)
}
