package timeslot

import (
	"fmt"
	"strings"
	"time"
)

// Clock supplies the current time to time-driven transitions.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock unless a simulated instant is configured.
type SystemClock struct {
	override *time.Time
	loc      *time.Location
}

// NewSystemClock builds a clock. An empty simulated value means wall-clock time;
// otherwise it must be an RFC3339 timestamp that the clock will keep returning.
func NewSystemClock(simulated string, loc *time.Location) (*SystemClock, error) {
	if loc == nil {
		loc = time.UTC
	}
	clock := &SystemClock{loc: loc}
	simulated = strings.TrimSpace(simulated)
	if simulated == "" {
		return clock, nil
	}
	ts, err := time.Parse(time.RFC3339, simulated)
	if err != nil {
		return nil, fmt.Errorf("parse simulated time %q: %w", simulated, err)
	}
	ts = ts.In(loc)
	clock.override = &ts
	return clock, nil
}

// FixedClock returns a clock pinned at t.
func FixedClock(t time.Time) *SystemClock {
	return &SystemClock{override: &t, loc: t.Location()}
}

// Now implements Clock.
func (c *SystemClock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	if c.override != nil {
		return *c.override
	}
	if c.loc != nil {
		return time.Now().In(c.loc)
	}
	return time.Now()
}

// Simulated reports whether the clock is pinned.
func (c *SystemClock) Simulated() bool {
	return c != nil && c.override != nil
}
