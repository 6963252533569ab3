package npc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/matt-g-everett/npcanim/anim"
	"github.com/matt-g-everett/npcanim/host"
)

var epoch = time.Date(2024, 12, 24, 18, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.advance(d)
	return ch
}

type frames struct {
	clock *fakeClock
}

func (f frames) NextFrame(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.clock.advance(16 * time.Millisecond)
	return nil
}

type call struct {
	at     time.Duration
	method string
	arg    string
	set    anim.Set
	reset  bool
}

// fakeHost records every capability call with the fake time it was made at.
type fakeHost struct {
	clock *fakeClock

	mu     sync.Mutex
	calls  []call
	toasts int
	// fail makes the named method fail, optionally only on its nth call.
	fail  string
	failN int
	seen  map[string]int
	// onCall runs after each call is recorded.
	onCall func(c call)
}

func newFakeHost(clock *fakeClock) *fakeHost {
	return &fakeHost{clock: clock, seen: make(map[string]int)}
}

func (h *fakeHost) record(c call) error {
	h.mu.Lock()
	c.at = h.clock.Now().Sub(epoch)
	h.calls = append(h.calls, c)
	h.seen[c.method]++
	failed := c.method == h.fail && (h.failN == 0 || h.seen[c.method] == h.failN)
	onCall := h.onCall
	h.mu.Unlock()

	if onCall != nil {
		onCall(c)
	}
	if failed {
		return fmt.Errorf("%s: %w", c.method, errHost)
	}
	return nil
}

func (h *fakeHost) methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.calls {
		out = append(out, c.method)
	}
	return out
}

func (h *fakeHost) Register(ctx context.Context, b host.Button, action func()) error {
	return h.record(call{method: "register", arg: b.Text})
}

func (h *fakeHost) Toast(ctx context.Context, t host.Toast) (host.ToastHandle, error) {
	if err := h.record(call{method: "toast", arg: t.Text}); err != nil {
		return "", err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toasts++
	return host.ToastHandle(fmt.Sprintf("toast-%d", h.toasts)), nil
}

func (h *fakeHost) CloseToast(ctx context.Context, t host.ToastHandle) error {
	return h.record(call{method: "closeToast", arg: string(t)})
}

func (h *fakeHost) Position(ctx context.Context) (mgl64.Vec3, error) {
	if err := h.record(call{method: "position"}); err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{3, 1.5, -7}, nil
}

func (h *fakeHost) Create(ctx context.Context, obj host.Object) (host.ObjectID, error) {
	if err := h.record(call{method: "create", arg: fmt.Sprintf("%s %s %g/%g/%g", obj.Type, obj.URL, obj.X, obj.Height, obj.Y), set: obj.Animation}); err != nil {
		return "", err
	}
	return "npc-1", nil
}

func (h *fakeHost) Update(ctx context.Context, id host.ObjectID, patch host.Patch, reset bool) error {
	return h.record(call{method: "update", arg: string(id), set: patch.Animation, reset: reset})
}

func (h *fakeHost) Remove(ctx context.Context, id host.ObjectID) error {
	return h.record(call{method: "remove", arg: string(id)})
}

func (h *fakeHost) Absolute(rel string) string {
	return "http://localhost:3000/assets/" + rel
}

var errHost = errors.New("host unavailable")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
