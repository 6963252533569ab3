package anim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matt-g-everett/npcanim/util"
)

// ErrInvalidDuration is returned for a crossfade with a negative duration.
var ErrInvalidDuration = errors.New("crossfade duration must not be negative")

// Crossfade describes a blend from one track to another over Duration.
type Crossfade struct {
	From     string
	To       string
	Duration time.Duration
}

// ApplyFunc delivers one blended set to the host.
type ApplyFunc func(ctx context.Context, set Set) error

// Sequencer drives crossfades one frame at a time.
type Sequencer struct {
	clock  Clock
	frames FrameSource
	ease   util.EaseFunc
}

// NewSequencer creates a Sequencer. A nil ease is linear.
func NewSequencer(clock Clock, frames FrameSource, ease util.EaseFunc) *Sequencer {
	s := new(Sequencer)
	s.clock = clock
	s.frames = frames
	s.ease = ease
	if s.ease == nil {
		s.ease, _ = util.Easing("linear")
	}
	return s
}

// Run emits one blended set per frame until the crossfade's duration has
// elapsed. The last emitted set is whatever the final frame computed; the
// fade is not snapped to the target.
func (s *Sequencer) Run(ctx context.Context, cf Crossfade, apply ApplyFunc) error {
	if cf.Duration < 0 {
		return ErrInvalidDuration
	}

	// A signal left over from before the fade would end the first frame early.
	if d, ok := s.frames.(PendingDropper); ok {
		d.DropPending()
	}

	startedAt := s.clock.Now()
	for {
		elapsed := s.clock.Now().Sub(startedAt)
		if elapsed >= cf.Duration {
			return nil
		}

		fade := util.Clamp01(float64(elapsed) / float64(cf.Duration))
		w := util.Clamp01(s.ease(fade))
		if err := apply(ctx, Blend(cf.From, cf.To, w)); err != nil {
			return fmt.Errorf("crossfade %s->%s: %w", cf.From, cf.To, err)
		}

		if err := s.frames.NextFrame(ctx); err != nil {
			return fmt.Errorf("crossfade %s->%s: waiting for frame: %w", cf.From, cf.To, err)
		}
	}
}
