package anim

import (
	"context"
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// stepFrames advances the clock by the next interval on every frame.
type stepFrames struct {
	clock     *fakeClock
	intervals []time.Duration
	frames    int
}

func (f *stepFrames) NextFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := f.intervals[f.frames%len(f.intervals)]
	f.frames++
	f.clock.now = f.clock.now.Add(d)
	return nil
}
