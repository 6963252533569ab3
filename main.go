package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"

	"github.com/matt-g-everett/npcanim/anim"
	"github.com/matt-g-everett/npcanim/api"
	"github.com/matt-g-everett/npcanim/config"
	"github.com/matt-g-everett/npcanim/host"
	"github.com/matt-g-everett/npcanim/logger"
	"github.com/matt-g-everett/npcanim/npc"
	"github.com/matt-g-everett/npcanim/plugin"
	"github.com/matt-g-everett/npcanim/util"
)

type app struct {
	Config config.Config
	Client mqtt.Client
	Host   *host.Client
	Plugin *plugin.Plugin
	Api    *api.Api
	log    *slog.Logger
	closer func()
}

func newApp() *app {
	a := new(app)
	a.closer = func() {}
	return a
}

func (a *app) handleOnConnect(client mqtt.Client) {
	a.log.Info("Connected", "broker", a.Config.Mqtt.URL)
	if err := a.Host.Subscribe(); err != nil {
		a.log.Error("Subscribe failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Mqtt.RPCTimeout)
	defer cancel()
	if err := a.Plugin.OnLoad(ctx); err != nil {
		a.log.Error("Plugin load failed", "error", err)
	}
}

func (a *app) guard() npc.Guard {
	if a.Config.Guard.Redis == "" {
		return npc.NewLocalGuard()
	}
	rdb := redis.NewClient(&redis.Options{Addr: a.Config.Guard.Redis})
	a.closer = func() { rdb.Close() }
	a.log.Info("Using shared guard", "redis", a.Config.Guard.Redis, "key", a.Config.Guard.Key)
	return npc.NewRedisGuard(rdb, a.Config.Guard.Key, a.Config.Guard.TTL)
}

func (a *app) frames() (anim.FrameSource, func()) {
	if a.Config.Frames.Source == config.FramesTicker {
		f := anim.NewTickerFrames(a.Config.Frames.Rate)
		return f, f.Stop
	}
	return a.Host, func() {}
}

func (a *app) build(ctx context.Context) func() {
	c := a.Config
	options := mqtt.NewClientOptions().
		AddBroker(c.Mqtt.URL).
		SetClientID(c.Mqtt.ClientID).
		SetUsername(c.Mqtt.Username).
		SetPassword(c.Mqtt.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetOnConnectHandler(a.handleOnConnect)
	a.Client = mqtt.NewClient(options)

	a.Host = host.NewClient(a.Client, host.Options{
		Topics: host.Topics{
			Request:  c.Mqtt.Topics.Request,
			Response: c.Mqtt.Topics.Response,
			Frame:    c.Mqtt.Topics.Frame,
			Menu:     c.Mqtt.Topics.Menu,
		},
		RPCTimeout:   c.Mqtt.RPCTimeout,
		AssetBaseURL: c.Assets.BaseURL,
	}, a.log)

	ease, _ := util.Easing(c.Timing.Easing)
	frames, stopFrames := a.frames()
	clock := anim.SystemClock{}
	driver := npc.NewDriver(a.Host, a.guard(), anim.NewSequencer(clock, frames, ease), clock, npc.Options{
		Model:     c.NPC.Model,
		IdleTrack: c.NPC.IdleTrack,
		WalkTrack: c.NPC.WalkTrack,
		Timing: npc.Timing{
			Dwell:         c.Timing.Dwell,
			Crossfade:     c.Timing.Crossfade,
			ToastCooldown: c.Timing.ToastCooldown,
		},
		StatusColour: c.StatusColour(),
	}, a.log)

	meta := plugin.Metadata{ID: c.Plugin.ID, Name: c.Plugin.Name, Description: c.Plugin.Description}
	a.Plugin = plugin.New(ctx, meta, a.Host, driver, c.NPC.Icon, c.NPC.Label, a.log)
	a.Api = api.NewApi(c.Assets.Listen, c.Assets.Dir, c.Plugin.ID, a.Plugin, a.log)
	return stopFrames
}

func (a *app) run(ctx context.Context) {
	if token := a.Client.Connect(); token.Wait() && token.Error() != nil {
		a.log.Error("Connect failed", "error", token.Error())
		os.Exit(1)
	}

	go func() {
		if err := a.Api.Serve(ctx); err != nil {
			a.log.Error("API stopped", "error", err)
		}
	}()

	<-ctx.Done()
	a.log.Info("Shutting down")
	a.Plugin.Wait()
	a.Client.Disconnect(250)
}

func main() {
	mqtt.ERROR = log.New(os.Stdout, "", 0)

	// Parse command line parameters
	configPath := flag.String("config", "config.yaml", "YAML config file.")
	flag.Parse()

	// Read the config
	a := newApp()
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	a.Config = cfg
	a.log = logger.Setup(&a.Config)
	a.log.Info("Starting", "name", cfg.Plugin.Name, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stopFrames := a.build(ctx)
	defer stopFrames()
	defer a.closer()

	a.run(ctx)
}
