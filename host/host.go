// Package host talks to the virtual-world host that owns objects, menus and
// rendering. The plugin only ever calls into it.
package host

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/matt-g-everett/npcanim/anim"
)

// ToastHandle identifies a toast shown by the host.
type ToastHandle string

// ObjectID identifies an object created by the host.
type ObjectID string

// Button is a toolbar entry.
type Button struct {
	ID   string `json:"id"`
	Icon string `json:"icon"`
	Text string `json:"text"`
}

// Toast is a transient message shown to the user.
type Toast struct {
	Text   string `json:"text"`
	Sticky bool   `json:"isSticky"`
	Colour string `json:"colour,omitempty"`
}

// Object describes an object for the host to create. The host's ground plane
// is x/y with height as the vertical axis.
type Object struct {
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	X         float64  `json:"x"`
	Height    float64  `json:"height"`
	Y         float64  `json:"y"`
	Animation anim.Set `json:"animation,omitempty"`
}

// ObjectAt builds an Object placed at a user position. User positions are
// y-up, so y becomes height and z becomes the host's y.
func ObjectAt(kind, url string, pos mgl64.Vec3, animation anim.Set) Object {
	return Object{
		Type:      kind,
		URL:       url,
		X:         pos.X(),
		Height:    pos.Y(),
		Y:         pos.Z(),
		Animation: animation,
	}
}

// Patch is a partial object update.
type Patch struct {
	Animation anim.Set `json:"animation,omitempty"`
}

// Menus registers toolbar buttons and shows toasts.
type Menus interface {
	Register(ctx context.Context, b Button, action func()) error
	Toast(ctx context.Context, t Toast) (ToastHandle, error)
	CloseToast(ctx context.Context, h ToastHandle) error
}

// User reports where the local user is.
type User interface {
	Position(ctx context.Context) (mgl64.Vec3, error)
}

// Objects creates, updates and removes host objects. An update with reset
// set restarts animation playback from the beginning.
type Objects interface {
	Create(ctx context.Context, obj Object) (ObjectID, error)
	Update(ctx context.Context, id ObjectID, patch Patch, reset bool) error
	Remove(ctx context.Context, id ObjectID) error
}

// Paths resolves plugin-relative asset paths to references the host can load.
type Paths interface {
	Absolute(rel string) string
}

// Host is the capability surface the plugin uses.
type Host interface {
	Menus
	User
	Objects
	Paths
}

// RemoteError is a failure reported by the host for a request.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("host %s: %s", e.Method, e.Message)
}
