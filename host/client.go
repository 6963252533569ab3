package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

var (
	// ErrTimeout is returned when the host doesn't answer a request in time.
	ErrTimeout = errors.New("host request timed out")
	// ErrNotConnected is returned when a request is made without a broker connection.
	ErrNotConnected = errors.New("not connected to broker")
)

const (
	methodRegister   = "menus.register"
	methodToast      = "menus.toast"
	methodCloseToast = "menus.closeToast"
	methodPosition   = "user.getPosition"
	methodCreate     = "objects.create"
	methodUpdate     = "objects.update"
	methodRemove     = "objects.remove"

	requestQos = 1
)

// Topics are the broker topics shared with the host.
type Topics struct {
	Request  string
	Response string
	Frame    string
	Menu     string
}

// Options configure a Client.
type Options struct {
	Topics       Topics
	RPCTimeout   time.Duration
	AssetBaseURL string
}

type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type menuEvent struct {
	Action string `json:"action"`
}

type idParams struct {
	ID string `json:"id"`
}

type updateParams struct {
	ID      ObjectID `json:"id"`
	Changes Patch    `json:"changes"`
	Reset   bool     `json:"reset"`
}

type position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Client is a Host reached through an MQTT broker. Requests are published on
// the request topic and matched to answers on the response topic by ID.
type Client struct {
	client  mqtt.Client
	options Options
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]chan response
	actions map[string]func()
	frame   chan struct{}
}

// NewClient creates an instance of a Client.
func NewClient(client mqtt.Client, options Options, log *slog.Logger) *Client {
	c := new(Client)
	c.client = client
	c.options = options
	c.log = log
	c.pending = make(map[string]chan response)
	c.actions = make(map[string]func())
	c.frame = make(chan struct{}, 1)
	return c
}

// Subscribe listens on the response, frame and menu topics. Call it from the
// broker's on-connect handler so subscriptions survive reconnects.
func (c *Client) Subscribe() error {
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{c.options.Topics.Response, c.handleResponse},
		{c.options.Topics.Frame, c.handleFrame},
		{c.options.Topics.Menu, c.handleMenu},
	}
	for _, s := range subs {
		if token := c.client.Subscribe(s.topic, 0, s.handler); token.Wait() && token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", s.topic, token.Error())
		}
		c.log.Debug("Subscribed", "topic", s.topic)
	}
	return nil
}

func (c *Client) handleResponse(client mqtt.Client, msg mqtt.Message) {
	var resp response
	if err := json.Unmarshal(msg.Payload(), &resp); err != nil {
		c.log.Warn("Dropping malformed response", "error", err, "topic", msg.Topic())
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[resp.ID]
	c.mu.Unlock()
	if !ok {
		c.log.Debug("Dropping response for unknown request", "id", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

func (c *Client) handleFrame(client mqtt.Client, msg mqtt.Message) {
	select {
	case c.frame <- struct{}{}:
	default:
	}
}

func (c *Client) handleMenu(client mqtt.Client, msg mqtt.Message) {
	var ev menuEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		c.log.Warn("Dropping malformed menu event", "error", err)
		return
	}

	c.mu.Lock()
	action, ok := c.actions[ev.Action]
	c.mu.Unlock()
	if !ok {
		c.log.Debug("No action registered", "action", ev.Action)
		return
	}

	// The action makes round trips whose answers arrive through this same
	// client's callbacks, so it must not run on the callback goroutine.
	go action()
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	if !c.client.IsConnectionOpen() {
		return fmt.Errorf("%s: %w", method, ErrNotConnected)
	}

	id := uuid.NewString()
	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", method, err)
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.options.RPCTimeout)
	defer timer.Stop()

	token := c.client.Publish(c.options.Topics.Request, requestQos, false, payload)
	if !token.WaitTimeout(c.options.RPCTimeout) {
		return fmt.Errorf("%s: publishing request: %w", method, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: publishing request: %w", method, err)
	}
	c.log.Debug("Request sent", "method", method, "id", id)

	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("%s: %w", method, ErrTimeout)
	case resp := <-ch:
		if resp.Error != "" {
			return &RemoteError{Method: method, Message: resp.Error}
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: decoding result: %w", method, err)
		}
		return nil
	}
}

// Register adds a toolbar button. action runs on its own goroutine each time
// the host reports a press.
func (c *Client) Register(ctx context.Context, b Button, action func()) error {
	c.mu.Lock()
	c.actions[b.ID] = action
	c.mu.Unlock()

	if err := c.call(ctx, methodRegister, b, nil); err != nil {
		c.mu.Lock()
		delete(c.actions, b.ID)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Toast shows a message and returns its handle.
func (c *Client) Toast(ctx context.Context, t Toast) (ToastHandle, error) {
	var h ToastHandle
	if err := c.call(ctx, methodToast, t, &h); err != nil {
		return "", err
	}
	return h, nil
}

// CloseToast dismisses a toast.
func (c *Client) CloseToast(ctx context.Context, h ToastHandle) error {
	return c.call(ctx, methodCloseToast, idParams{ID: string(h)}, nil)
}

// Position returns the user's current position.
func (c *Client) Position(ctx context.Context) (mgl64.Vec3, error) {
	var p position
	if err := c.call(ctx, methodPosition, nil, &p); err != nil {
		return mgl64.Vec3{}, err
	}
	return mgl64.Vec3{p.X, p.Y, p.Z}, nil
}

// Create asks the host to create an object.
func (c *Client) Create(ctx context.Context, obj Object) (ObjectID, error) {
	var id ObjectID
	if err := c.call(ctx, methodCreate, obj, &id); err != nil {
		return "", err
	}
	return id, nil
}

// Update applies a partial update to an object.
func (c *Client) Update(ctx context.Context, id ObjectID, patch Patch, reset bool) error {
	return c.call(ctx, methodUpdate, updateParams{ID: id, Changes: patch, Reset: reset}, nil)
}

// Remove deletes an object.
func (c *Client) Remove(ctx context.Context, id ObjectID) error {
	return c.call(ctx, methodRemove, idParams{ID: string(id)}, nil)
}

// Absolute resolves an asset path against the asset base URL.
func (c *Client) Absolute(rel string) string {
	u, err := url.JoinPath(c.options.AssetBaseURL, rel)
	if err != nil {
		return rel
	}
	return u
}

// DropPending discards a frame signal received while nobody was waiting.
func (c *Client) DropPending() {
	select {
	case <-c.frame:
	default:
	}
}

// NextFrame waits for the host's next rendered-frame signal.
func (c *Client) NextFrame(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.frame:
		return nil
	}
}
