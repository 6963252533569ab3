package anim

import (
	"context"
	"time"
)

// Clock is the time source for crossfades and dwells.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Sleep waits for d on clock, returning early with the context's error if it
// is cancelled.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

// FrameSource signals the start of each rendered frame.
type FrameSource interface {
	NextFrame(ctx context.Context) error
}

// PendingDropper is a FrameSource that can discard a frame signal that
// arrived before anyone was waiting for it.
type PendingDropper interface {
	DropPending()
}

// TickerFrames is a FrameSource that ticks at a fixed rate, for hosts that
// don't publish a frame signal.
type TickerFrames struct {
	ticker *time.Ticker
}

// NewTickerFrames creates a TickerFrames running at rate frames per second.
func NewTickerFrames(rate float64) *TickerFrames {
	f := new(TickerFrames)
	f.ticker = time.NewTicker(time.Duration(float64(time.Second) / rate))
	return f
}

// NextFrame waits for the next tick.
func (f *TickerFrames) NextFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.ticker.C:
		return nil
	}
}

// DropPending discards a tick that fired while nobody was waiting.
func (f *TickerFrames) DropPending() {
	select {
	case <-f.ticker.C:
	default:
	}
}

// Stop releases the underlying ticker.
func (f *TickerFrames) Stop() {
	f.ticker.Stop()
}
