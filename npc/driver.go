// Package npc runs the NPC demonstration: spawn an NPC next to the user, blend
// it between idle and walk, freeze and unfreeze the walk, then remove it.
package npc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/matt-g-everett/npcanim/anim"
	"github.com/matt-g-everett/npcanim/host"
	"github.com/matt-g-everett/npcanim/logger"
)

const teardownTimeout = 10 * time.Second

// Status texts shown during a run.
const (
	StatusIdle    = "NPC: Idle"
	StatusWalking = "NPC: Walking"
	StatusFrozen  = "NPC: Walking (freeze)"
)

// Timing holds the fixed durations of a run.
type Timing struct {
	// Dwell is how long each phase holds before the next begins.
	Dwell time.Duration
	// Crossfade is the length of the idle/walk blends.
	Crossfade time.Duration
	// ToastCooldown separates closing one toast from opening the next.
	ToastCooldown time.Duration
}

// DefaultTiming returns the stock durations.
func DefaultTiming() Timing {
	return Timing{
		Dwell:         5000 * time.Millisecond,
		Crossfade:     2000 * time.Millisecond,
		ToastCooldown: 750 * time.Millisecond,
	}
}

// Options configure a Driver.
type Options struct {
	// Model is the plugin-relative path of the NPC model.
	Model     string
	IdleTrack string
	WalkTrack string
	Timing    Timing
	// StatusColour is passed to the host with every toast.
	StatusColour string
}

// Phase is a step of a run.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSpawning
	PhaseIdleDisplay
	PhaseFadeToWalk
	PhaseFreezeWalk
	PhaseUnfreezeWalk
	PhaseFadeToIdle
	PhaseTeardown
)

var phaseNames = [...]string{
	PhaseIdle:         "idle",
	PhaseSpawning:     "spawning",
	PhaseIdleDisplay:  "idle-display",
	PhaseFadeToWalk:   "fade-to-walk",
	PhaseFreezeWalk:   "freeze-walk",
	PhaseUnfreezeWalk: "unfreeze-walk",
	PhaseFadeToIdle:   "fade-to-idle",
	PhaseTeardown:     "teardown",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int32(p))
	}
	return phaseNames[p]
}

// Driver runs the choreography against a host.
type Driver struct {
	host    host.Host
	guard   Guard
	seq     *anim.Sequencer
	clock   anim.Clock
	options Options
	log     *slog.Logger

	phase atomic.Int32
}

// NewDriver creates an instance of a Driver.
func NewDriver(h host.Host, guard Guard, seq *anim.Sequencer, clock anim.Clock, options Options, log *slog.Logger) *Driver {
	d := new(Driver)
	d.host = h
	d.guard = guard
	d.seq = seq
	d.clock = clock
	d.options = options
	d.log = log
	return d
}

// Phase reports the phase of the run in progress, or PhaseIdle.
func (d *Driver) Phase() Phase {
	return Phase(d.phase.Load())
}

// Running reports whether any run holds the guard, including runs in other
// processes when the guard is shared.
func (d *Driver) Running(ctx context.Context) (bool, error) {
	return d.guard.Running(ctx)
}

// Press performs one full run. A press while a run is in progress is dropped
// and returns nil. A failure aborts the run; the NPC is still removed and the
// guard released before Press returns.
func (d *Driver) Press(ctx context.Context) error {
	session, err := d.guard.TryStart(ctx)
	if errors.Is(err, ErrRunning) {
		d.log.Debug("Press ignored, choreography already running")
		return nil
	}
	if err != nil {
		return err
	}

	r := &run{
		driver:  d,
		session: session,
		status:  NewStatus(d.host, d.clock, d.options.Timing.ToastCooldown, d.options.StatusColour, d.log),
		log:     d.log.With("run_id", uuid.NewString()),
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
		defer cancel()
		if err := session.Release(ctx); err != nil {
			logger.WithError(r.log, err).Error("Failed to release guard")
		}
		d.phase.Store(int32(PhaseIdle))
	}()

	r.log.Info("Choreography started")
	err = r.perform(ctx)
	if err != nil {
		logger.WithError(r.log, err).Error("Choreography aborted", "phase", d.Phase())
	}
	if cleanupErr := r.teardown(ctx); cleanupErr != nil {
		logger.WithError(r.log, cleanupErr).Error("Teardown failed")
		err = errors.Join(err, cleanupErr)
	}
	if err == nil {
		r.log.Info("Choreography finished")
	}
	return err
}

type run struct {
	driver  *Driver
	session Session
	status  *Status
	log     *slog.Logger
	npc     host.ObjectID
}

type step struct {
	phase  Phase
	status string
	action func(ctx context.Context) error
}

func (r *run) enter(p Phase) {
	r.driver.phase.Store(int32(p))
	r.log.Info("Phase", "phase", p)
}

func (r *run) perform(ctx context.Context) error {
	o := r.driver.options
	steps := []step{
		{PhaseSpawning, StatusIdle, r.spawn},
		{PhaseFadeToWalk, StatusWalking, r.fade(o.IdleTrack, o.WalkTrack)},
		{PhaseFreezeWalk, StatusFrozen, r.reset(anim.Set{
			{Name: o.WalkTrack, Weight: 1, Loop: 1},
			{Name: o.IdleTrack, Weight: 0, Loop: anim.LoopInfinite},
		})},
		{PhaseUnfreezeWalk, StatusWalking, r.reset(anim.Set{
			{Name: o.WalkTrack, Weight: 1, Loop: anim.LoopInfinite},
			{Name: o.IdleTrack, Weight: 0, Loop: anim.LoopInfinite},
		})},
		{PhaseFadeToIdle, StatusIdle, r.fade(o.WalkTrack, o.IdleTrack)},
	}

	for _, s := range steps {
		r.enter(s.phase)
		if err := r.session.Extend(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.phase, err)
		}
		if err := r.status.Show(ctx, s.status); err != nil {
			return fmt.Errorf("%s: showing status: %w", s.phase, err)
		}
		if err := s.action(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.phase, err)
		}
		if err := anim.Sleep(ctx, r.driver.clock, o.Timing.Dwell); err != nil {
			return fmt.Errorf("%s: %w", r.driver.Phase(), err)
		}
	}
	return nil
}

func (r *run) spawn(ctx context.Context) error {
	d := r.driver
	pos, err := d.host.Position(ctx)
	if err != nil {
		return fmt.Errorf("getting user position: %w", err)
	}

	obj := host.ObjectAt("model", d.host.Absolute(d.options.Model), pos, anim.Set{
		{Name: d.options.IdleTrack, Weight: 1, Loop: anim.LoopInfinite},
		{Name: d.options.WalkTrack, Weight: 0, Loop: anim.LoopInfinite},
	})
	id, err := d.host.Create(ctx, obj)
	if err != nil {
		return fmt.Errorf("creating npc: %w", err)
	}
	r.npc = id
	r.log.Info("NPC spawned", "object", id, "x", obj.X, "height", obj.Height, "y", obj.Y)

	r.enter(PhaseIdleDisplay)
	return nil
}

// fade blends between tracks without restarting playback.
func (r *run) fade(from, to string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cf := anim.Crossfade{From: from, To: to, Duration: r.driver.options.Timing.Crossfade}
		return r.driver.seq.Run(ctx, cf, func(ctx context.Context, set anim.Set) error {
			return r.driver.host.Update(ctx, r.npc, host.Patch{Animation: set}, false)
		})
	}
}

// reset replaces the animation and restarts playback.
func (r *run) reset(set anim.Set) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return r.driver.host.Update(ctx, r.npc, host.Patch{Animation: set}, true)
	}
}

// teardown clears the status and removes the NPC. It runs on a fresh context
// so an aborted run still cleans up.
func (r *run) teardown(ctx context.Context) error {
	r.enter(PhaseTeardown)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := r.session.Extend(ctx); err != nil {
		r.log.Warn("Guard not extended for teardown", "error", err)
	}

	var errs []error
	if err := r.status.Clear(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing status: %w", err))
	}
	if r.npc != "" {
		if err := r.driver.host.Remove(ctx, r.npc); err != nil {
			errs = append(errs, fmt.Errorf("removing npc %s: %w", r.npc, err))
		} else {
			r.log.Info("NPC removed", "object", r.npc)
		}
	}
	return errors.Join(errs...)
}
