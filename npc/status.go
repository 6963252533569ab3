package npc

import (
	"context"
	"log/slog"
	"time"

	"github.com/matt-g-everett/npcanim/anim"
	"github.com/matt-g-everett/npcanim/host"
)

// Status keeps at most one sticky toast on screen. It is not safe for
// concurrent use; the driver calls it from one goroutine.
type Status struct {
	menus    host.Menus
	clock    anim.Clock
	cooldown time.Duration
	colour   string
	log      *slog.Logger

	toast host.ToastHandle
}

// NewStatus creates an instance of a Status.
func NewStatus(menus host.Menus, clock anim.Clock, cooldown time.Duration, colour string, log *slog.Logger) *Status {
	return &Status{
		menus:    menus,
		clock:    clock,
		cooldown: cooldown,
		colour:   colour,
		log:      log,
	}
}

// Show replaces the current toast with text. The old toast is closed and the
// cooldown observed before the new one opens, giving the host time to finish
// dismissing it. An empty text only clears.
func (s *Status) Show(ctx context.Context, text string) error {
	if s.toast != "" {
		h := s.toast
		s.toast = ""
		if err := s.menus.CloseToast(ctx, h); err != nil {
			return err
		}
		if err := anim.Sleep(ctx, s.clock, s.cooldown); err != nil {
			return err
		}
	}

	if text == "" {
		return nil
	}

	h, err := s.menus.Toast(ctx, host.Toast{Text: text, Sticky: true, Colour: s.colour})
	if err != nil {
		return err
	}
	s.toast = h
	s.log.Debug("Status shown", "text", text, "toast", h)
	return nil
}

// Clear removes the current toast, if any.
func (s *Status) Clear(ctx context.Context) error {
	return s.Show(ctx, "")
}

// Showing reports whether a toast is currently held.
func (s *Status) Showing() bool {
	return s.toast != ""
}
