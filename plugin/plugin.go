// Package plugin is the entry point the host sees: identification, the
// toolbar button and what a press does.
package plugin

import (
	"context"
	"log/slog"
	"sync"

	"github.com/matt-g-everett/npcanim/host"
	"github.com/matt-g-everett/npcanim/logger"
	"github.com/matt-g-everett/npcanim/npc"
)

// ButtonID is the action ID the host reports when the toolbar button is pressed.
const ButtonID = "animation-test"

// Metadata identifies the plugin to the host loader.
type Metadata struct {
	ID          string
	Name        string
	Description string
}

// Driver runs choreographies.
type Driver interface {
	Press(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
	Phase() npc.Phase
}

// Host is the part of the host the plugin itself needs.
type Host interface {
	host.Menus
	host.Paths
}

// Plugin wires the toolbar button to the driver.
type Plugin struct {
	meta   Metadata
	host   Host
	driver Driver
	icon   string
	label  string
	log    *slog.Logger

	ctx context.Context
	wg  sync.WaitGroup
}

// New creates a Plugin. Presses run under ctx, so cancelling it aborts any
// run in progress.
func New(ctx context.Context, meta Metadata, h Host, driver Driver, icon, label string, log *slog.Logger) *Plugin {
	p := new(Plugin)
	p.ctx = ctx
	p.meta = meta
	p.host = h
	p.driver = driver
	p.icon = icon
	p.label = label
	p.log = log
	return p
}

// Metadata returns the plugin's identification.
func (p *Plugin) Metadata() Metadata {
	return p.meta
}

// OnLoad registers the toolbar button.
func (p *Plugin) OnLoad(ctx context.Context) error {
	b := host.Button{
		ID:   ButtonID,
		Icon: p.host.Absolute(p.icon),
		Text: p.label,
	}
	if err := p.host.Register(ctx, b, p.Trigger); err != nil {
		return err
	}
	p.log.Info("Loaded", "name", p.meta.Name, "button", b.Text)
	return nil
}

// Trigger starts a run in the background, as a button press does.
func (p *Plugin) Trigger() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.press()
	}()
}

func (p *Plugin) press() {
	if err := p.driver.Press(p.ctx); err != nil {
		logger.WithError(p.log, err).Error("Choreography failed")
	}
}

// Running reports whether a run is in progress.
func (p *Plugin) Running(ctx context.Context) (bool, error) {
	return p.driver.Running(ctx)
}

// Phase reports the local driver's current phase.
func (p *Plugin) Phase() string {
	return p.driver.Phase().String()
}

// Wait blocks until every triggered run has returned.
func (p *Plugin) Wait() {
	p.wg.Wait()
}
