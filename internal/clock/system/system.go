// Package system provides the clocks used for validation and scrape timestamps.
package system

import "time"

// Clock reports UTC wall-clock time.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant. Tests use it to pin
// lastValidatedAt and ScrapedAt.
type Fixed struct {
	At time.Time
}

// NewFixed returns a clock frozen at t, normalized to UTC.
func NewFixed(t time.Time) Fixed {
	return Fixed{At: t.UTC()}
}

// Now returns the frozen instant.
func (f Fixed) Now() time.Time {
	return f.At
}
