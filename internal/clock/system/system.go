// Package system provides the real clock and sleeper.
package system

import "time"

// Clock implements filing.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Sleeper implements filing.Sleeper using time.Sleep.
type Sleeper struct{}

// Sleep blocks the calling goroutine for d.
func (Sleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
