package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v2"

	"github.com/matt-g-everett/npcanim/util"
)

const (
	FramesHost   = "host"
	FramesTicker = "ticker"
)

// Config is the plugin's YAML configuration.
type Config struct {
	Environment string `yaml:"environment"`

	Plugin struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"plugin"`

	Mqtt struct {
		URL        string        `yaml:"url"`
		ClientID   string        `yaml:"clientID"`
		Username   string        `yaml:"username"`
		Password   string        `yaml:"password"`
		RPCTimeout time.Duration `yaml:"rpcTimeout"`
		Topics     struct {
			Request  string `yaml:"request"`
			Response string `yaml:"response"`
			Frame    string `yaml:"frame"`
			Menu     string `yaml:"menu"`
		} `yaml:"topics"`
	} `yaml:"mqtt"`

	Assets struct {
		Dir     string `yaml:"dir"`
		Listen  string `yaml:"listen"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"assets"`

	NPC struct {
		Model     string `yaml:"model"`
		Icon      string `yaml:"icon"`
		Label     string `yaml:"label"`
		IdleTrack string `yaml:"idleTrack"`
		WalkTrack string `yaml:"walkTrack"`
	} `yaml:"npc"`

	Timing struct {
		Dwell         time.Duration `yaml:"dwell"`
		Crossfade     time.Duration `yaml:"crossfade"`
		ToastCooldown time.Duration `yaml:"toastCooldown"`
		Easing        string        `yaml:"easing"`
	} `yaml:"timing"`

	Status struct {
		Colour string `yaml:"colour"`
	} `yaml:"status"`

	Frames struct {
		Source string  `yaml:"source"`
		Rate   float64 `yaml:"rate"`
	} `yaml:"frames"`

	Guard struct {
		Redis string        `yaml:"redis"`
		Key   string        `yaml:"key"`
		TTL   time.Duration `yaml:"ttl"`
	} `yaml:"guard"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used for anything the file leaves out.
func Default() Config {
	var c Config
	c.Environment = "development"

	c.Plugin.ID = "com.vatom.example.animations"
	c.Plugin.Name = "Example Animations"
	c.Plugin.Description = "Shows an example playing and blending animations on an object."

	c.Mqtt.URL = "tcp://localhost:1883"
	c.Mqtt.ClientID = "npcanim"
	c.Mqtt.RPCTimeout = 10 * time.Second
	c.Mqtt.Topics.Request = "spaces/plugins/npcanim/request"
	c.Mqtt.Topics.Response = "spaces/plugins/npcanim/response"
	c.Mqtt.Topics.Frame = "spaces/frame"
	c.Mqtt.Topics.Menu = "spaces/plugins/npcanim/menu"

	c.Assets.Dir = "assets"
	c.Assets.Listen = ":3000"
	c.Assets.BaseURL = "http://localhost:3000/assets/"

	c.NPC.Model = "npc.glb"
	c.NPC.Icon = "button-icon.png"
	c.NPC.Label = "Animation Test"
	c.NPC.IdleTrack = "humanoid.idle"
	c.NPC.WalkTrack = "humanoid.walk"

	c.Timing.Dwell = 5000 * time.Millisecond
	c.Timing.Crossfade = 2000 * time.Millisecond
	c.Timing.ToastCooldown = 750 * time.Millisecond
	c.Timing.Easing = "linear"

	c.Frames.Source = FramesHost
	c.Frames.Rate = 60

	c.Guard.Key = "npcanim:choreography"
	c.Guard.TTL = 2 * time.Minute

	c.Log.Level = "info"
	return c
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Read(f)
}

// Read is Load for an already open config.
func Read(r io.Reader) (Config, error) {
	c := Default()
	decoder := yaml.NewDecoder(r)
	decoder.SetStrict(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyEnv() {
	c.Mqtt.URL = getEnv("MQTT_URL", c.Mqtt.URL)
	c.Mqtt.Password = getEnv("MQTT_PASSWORD", c.Mqtt.Password)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Mqtt.URL == "" {
		errs = append(errs, errors.New("mqtt.url is required"))
	}
	if c.Mqtt.RPCTimeout <= 0 {
		errs = append(errs, errors.New("mqtt.rpcTimeout must be positive"))
	}
	if c.NPC.IdleTrack == "" || c.NPC.WalkTrack == "" {
		errs = append(errs, errors.New("npc.idleTrack and npc.walkTrack are required"))
	}
	if c.Timing.Dwell < 0 || c.Timing.Crossfade < 0 || c.Timing.ToastCooldown < 0 {
		errs = append(errs, errors.New("timing durations must not be negative"))
	}
	if _, err := util.Easing(c.Timing.Easing); err != nil {
		errs = append(errs, fmt.Errorf("timing.easing: %w", err))
	}
	if c.Status.Colour != "" {
		if _, err := colorful.Hex(c.Status.Colour); err != nil {
			errs = append(errs, fmt.Errorf("status.colour %q: %w", c.Status.Colour, err))
		}
	}
	switch c.Frames.Source {
	case FramesHost, FramesTicker:
	default:
		errs = append(errs, fmt.Errorf("frames.source %q must be %q or %q", c.Frames.Source, FramesHost, FramesTicker))
	}
	if c.Frames.Rate <= 0 {
		errs = append(errs, errors.New("frames.rate must be positive"))
	}
	if c.Guard.Redis != "" {
		// The guard is extended once per phase, so it has to outlive the
		// longest phase plus a round trip.
		if phase := c.LongestPhase() + c.Mqtt.RPCTimeout; c.Guard.TTL <= phase {
			errs = append(errs, fmt.Errorf("guard.ttl %s must exceed the longest phase (%s)", c.Guard.TTL, phase))
		}
	}
	return errors.Join(errs...)
}

// LongestPhase is the most time a single phase can spend between guard
// extensions: the toast cooldown, a crossfade and the dwell.
func (c *Config) LongestPhase() time.Duration {
	return c.Timing.ToastCooldown + c.Timing.Crossfade + c.Timing.Dwell
}

// StatusColour returns the toast colour in canonical #rrggbb form, or "" when
// none is set.
func (c *Config) StatusColour() string {
	if c.Status.Colour == "" {
		return ""
	}
	col, err := colorful.Hex(c.Status.Colour)
	if err != nil {
		return ""
	}
	return col.Hex()
}

// LogLevel parses log.level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
