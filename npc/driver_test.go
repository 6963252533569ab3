package npc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/npcanim/anim"
)

const (
	idle = "humanoid.idle"
	walk = "humanoid.walk"
)

func newTestDriver(h *fakeHost, guard Guard) *Driver {
	seq := anim.NewSequencer(h.clock, frames{clock: h.clock}, nil)
	return NewDriver(h, guard, seq, h.clock, Options{
		Model:        "npc.glb",
		IdleTrack:    idle,
		WalkTrack:    walk,
		Timing:       DefaultTiming(),
		StatusColour: "#404040",
	}, discardLogger())
}

// squash collapses each crossfade's run of soft updates into one "fade" entry.
func squash(calls []call) []string {
	var out []string
	for _, c := range calls {
		name := c.method
		switch {
		case c.method == "update" && !c.reset:
			name = "fade"
		case c.method == "update":
			name = "reset"
		case c.method == "toast":
			name = "toast " + c.arg
		}
		if name == "fade" && len(out) > 0 && out[len(out)-1] == "fade" {
			continue
		}
		out = append(out, name)
	}
	return out
}

func fadeSamples(calls []call, from, to int) []call {
	var out []call
	for _, c := range calls[from:to] {
		if c.method == "update" && !c.reset {
			out = append(out, c)
		}
	}
	return out
}

func TestPressFullChoreography(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	guard := NewLocalGuard()
	d := newTestDriver(h, guard)

	require.NoError(t, d.Press(context.Background()))

	assert.Equal(t, []string{
		"toast NPC: Idle", "position", "create",
		"closeToast", "toast NPC: Walking", "fade",
		"closeToast", "toast NPC: Walking (freeze)", "reset",
		"closeToast", "toast NPC: Walking", "reset",
		"closeToast", "toast NPC: Idle", "fade",
		"closeToast", "remove",
	}, squash(h.calls))

	create := h.calls[2]
	assert.Equal(t, "model http://localhost:3000/assets/npc.glb 3/1.5/-7", create.arg, "y-up position maps to height")
	assert.Equal(t, anim.Set{
		{Name: idle, Weight: 1, Loop: anim.LoopInfinite},
		{Name: walk, Weight: 0, Loop: anim.LoopInfinite},
	}, create.set)

	var resets []call
	for _, c := range h.calls {
		if c.method == "update" && c.reset {
			resets = append(resets, c)
		}
	}
	require.Len(t, resets, 2)
	assert.Equal(t, anim.Set{
		{Name: walk, Weight: 1, Loop: 1},
		{Name: idle, Weight: 0, Loop: anim.LoopInfinite},
	}, resets[0].set)
	assert.Equal(t, anim.Set{
		{Name: walk, Weight: 1, Loop: anim.LoopInfinite},
		{Name: idle, Weight: 0, Loop: anim.LoopInfinite},
	}, resets[1].set)
	assert.Equal(t, 13500*time.Millisecond, resets[0].at)
	assert.Equal(t, 19250*time.Millisecond, resets[1].at)

	last := h.calls[len(h.calls)-1]
	assert.Equal(t, "remove", last.method)
	assert.Equal(t, "npc-1", last.arg)
	assert.Equal(t, 32750*time.Millisecond, last.at)

	running, err := d.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running)
	assert.Equal(t, PhaseIdle, d.Phase())
}

func TestPressCrossfadeSamples(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	d := newTestDriver(h, NewLocalGuard())
	require.NoError(t, d.Press(context.Background()))

	toWalk := fadeSamples(h.calls, 0, len(h.calls)/2)
	require.Len(t, toWalk, 125)
	assert.Equal(t, 5750*time.Millisecond, toWalk[0].at)
	assert.Equal(t, 0.0, toWalk[0].set.Weight(walk))
	assert.InDelta(t, 1.0, toWalk[len(toWalk)-1].set.Weight(walk), 0.01)
	prev := 0.0
	for _, c := range toWalk {
		assert.Equal(t, "npc-1", c.arg)
		assert.InDelta(t, 1.0, c.set.Weight(idle)+c.set.Weight(walk), 1e-12)
		assert.GreaterOrEqual(t, c.set.Weight(walk), prev)
		prev = c.set.Weight(walk)
	}

	toIdle := fadeSamples(h.calls, len(h.calls)/2, len(h.calls))
	require.Len(t, toIdle, 125)
	assert.Equal(t, 25000*time.Millisecond, toIdle[0].at)
	assert.Equal(t, walk, toIdle[0].set[0].Name)
	assert.Equal(t, 1.0, toIdle[0].set.Weight(walk))
	assert.InDelta(t, 1.0, toIdle[len(toIdle)-1].set.Weight(idle), 0.01)
}

func TestPressWhileRunningIsDropped(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	guard := NewLocalGuard()
	d := newTestDriver(h, guard)

	session, err := guard.TryStart(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.Press(context.Background()))
	assert.Empty(t, h.calls)

	require.NoError(t, session.Release(context.Background()))
	require.NoError(t, d.Press(context.Background()))
	assert.NotEmpty(t, h.calls)
}

func TestConcurrentPressesRunOnce(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	d := newTestDriver(h, NewLocalGuard())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.onCall = func(c call) {
		if c.method == "position" {
			once.Do(func() {
				close(entered)
				<-release
			})
		}
	}

	done := make(chan error, 1)
	go func() { done <- d.Press(context.Background()) }()
	<-entered

	before := len(h.methods())
	require.NoError(t, d.Press(context.Background()))
	assert.Equal(t, before, len(h.methods()), "dropped press makes no host calls")
	assert.Equal(t, PhaseSpawning, d.Phase())

	close(release)
	require.NoError(t, <-done)

	creates := 0
	for _, m := range h.methods() {
		if m == "create" {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

func TestPressFailureCleansUp(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	h.fail = "update"
	h.failN = 3
	guard := NewLocalGuard()
	d := newTestDriver(h, guard)

	err := d.Press(context.Background())
	require.ErrorIs(t, err, errHost)
	assert.Contains(t, err.Error(), PhaseFadeToWalk.String())

	assert.Equal(t, []string{
		"toast NPC: Idle", "position", "create",
		"closeToast", "toast NPC: Walking", "fade",
		"closeToast", "remove",
	}, squash(h.calls))

	running, err := guard.Running(context.Background())
	require.NoError(t, err)
	assert.False(t, running, "guard released after failure")
	assert.Equal(t, PhaseIdle, d.Phase())
}

func TestPressCreateFailureSkipsRemove(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	h.fail = "create"
	d := newTestDriver(h, NewLocalGuard())

	err := d.Press(context.Background())
	require.ErrorIs(t, err, errHost)
	assert.Equal(t, []string{"toast NPC: Idle", "position", "create", "closeToast"}, squash(h.calls))
}

func TestPressTeardownFailureIsReported(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	h.fail = "remove"
	guard := NewLocalGuard()
	d := newTestDriver(h, guard)

	err := d.Press(context.Background())
	require.ErrorIs(t, err, errHost)
	assert.Contains(t, err.Error(), "removing npc npc-1")

	running, _ := guard.Running(context.Background())
	assert.False(t, running)
}

func TestPressCancelled(t *testing.T) {
	clock := newFakeClock()
	h := newFakeHost(clock)
	d := newTestDriver(h, NewLocalGuard())

	ctx, cancel := context.WithCancel(context.Background())
	h.onCall = func(c call) {
		if c.method == "update" && c.reset {
			cancel()
		}
	}

	err := d.Press(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), PhaseFreezeWalk.String())

	methods := squash(h.calls)
	assert.Equal(t, "reset", methods[len(methods)-3])
	assert.Equal(t, []string{"closeToast", "remove"}, methods[len(methods)-2:])
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "fade-to-walk", PhaseFadeToWalk.String())
	assert.Equal(t, "teardown", PhaseTeardown.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}
