package ltesto

import "time"

// Clock is a manual clock. Sleep advances it instantly so wait loops run
// without real delays.
type Clock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
}

// Slept returns the total time passed to Sleep.
func (c *Clock) Slept() time.Duration { return c.slept }

// Sleeps returns the number of calls to Sleep.
func (c *Clock) Sleeps() int { return c.sleeps }
