package npc

import (
	"context"
	"errors"
	"sync"
)

// ErrRunning is returned by TryStart while another choreography holds the guard.
var ErrRunning = errors.New("choreography already running")

// ErrLost is returned by Extend when the session no longer holds the guard.
var ErrLost = errors.New("choreography guard lost")

// Session is a held guard. Extend it before it can lapse and release it
// exactly once.
type Session interface {
	Extend(ctx context.Context) error
	Release(ctx context.Context) error
}

// Guard admits one choreography at a time.
type Guard interface {
	TryStart(ctx context.Context) (Session, error)
	Running(ctx context.Context) (bool, error)
}

// LocalGuard is a Guard for a single plugin process.
type LocalGuard struct {
	mu      sync.Mutex
	running bool
}

// NewLocalGuard creates an instance of a LocalGuard.
func NewLocalGuard() *LocalGuard {
	return new(LocalGuard)
}

func (g *LocalGuard) TryStart(ctx context.Context) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil, ErrRunning
	}
	g.running = true
	return &localSession{guard: g}, nil
}

func (g *LocalGuard) Running(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running, nil
}

type localSession struct {
	guard *LocalGuard
	once  sync.Once
}

// Extend is a no-op; a local session never lapses.
func (s *localSession) Extend(ctx context.Context) error {
	return nil
}

func (s *localSession) Release(ctx context.Context) error {
	s.once.Do(func() {
		s.guard.mu.Lock()
		s.guard.running = false
		s.guard.mu.Unlock()
	})
	return nil
}
