package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/config"
	"github.com/coreman2200/twinkly-weather/internal/driver/sim"
	"github.com/coreman2200/twinkly-weather/internal/icon"
	"github.com/coreman2200/twinkly-weather/internal/intent"
	"github.com/coreman2200/twinkly-weather/internal/provider"
	"github.com/coreman2200/twinkly-weather/internal/provider/elspot"
	"github.com/coreman2200/twinkly-weather/internal/provider/netatmo"
	"github.com/coreman2200/twinkly-weather/internal/provider/yr"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/session"
	"github.com/coreman2200/twinkly-weather/internal/twinkly"
)

// Core is the wired daemon: session, engine and control loop.
type Core struct {
	Cfg       *config.Config
	Session   *session.Session
	Eng       *render.Engine
	Conductor *Conductor
	Intent    *intent.Store
	Icons     *icon.Set
	Sim       *sim.Device
}

type Options struct {
	Logger zerolog.Logger
	// SimOut is where the simulated panel draws; nil means stdout.
	SimOut io.Writer
}

// Dialers picks the wire client for cfg.Device.Driver.
func Dialers(cfg *config.Config, opts Options) (session.Dialer, session.Discoverer, *sim.Device) {
	if cfg.Device.Driver == "sim" {
		dev := sim.New(sim.Options{Layout: cfg.Layout(), Out: opts.SimOut, RTTimeout: 2 * cfg.Device.KeepAlive})
		return dev.Dial, dev.Discover, dev
	}
	dial := func(ctx context.Context, addr string) (session.Device, error) {
		c, err := twinkly.Dial(ctx, addr, twinkly.Options{Logger: opts.Logger})
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	discover := func(ctx context.Context) ([]string, error) {
		devs, err := twinkly.Discover(ctx, cfg.Device.DiscoveryTimeout)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(devs))
		for i, d := range devs {
			out[i] = d.IP.String()
		}
		return out, nil
	}
	return dial, discover, nil
}

// Sources builds the enabled reading sources in display order.
func Sources(cfg *config.Config, logger zerolog.Logger) []provider.Source {
	var out []provider.Source
	p := cfg.Providers
	if p.Netatmo.Enabled {
		out = append(out, netatmo.New(netatmo.Credentials{
			ClientID:     p.Netatmo.ClientID,
			ClientSecret: p.Netatmo.ClientSecret,
			RefreshToken: p.Netatmo.RefreshToken,
			Username:     p.Netatmo.Username,
			Password:     p.Netatmo.Password,
		}, netatmo.Options{Logger: logger}))
	}
	if p.Yr.Enabled {
		out = append(out, yr.New(p.Yr.Lat, p.Yr.Lon, p.Yr.Label, yr.Options{Logger: logger}))
	}
	if p.Elspot.Enabled {
		out = append(out, elspot.New(p.Elspot.Region, p.Elspot.Label, elspot.Options{Logger: logger}))
	}
	return out
}

// InitCore wires everything from cfg. The session is connected best-effort;
// the control loop reconnects when it is not.
func InitCore(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	logger := opts.Logger
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := cfg.Layout()

	icons, err := icon.Load(cfg.Display.IconsPath, l.Width(), l.Height())
	if err != nil {
		return nil, fmt.Errorf("load icons: %w", err)
	}

	dial, discover, simDev := Dialers(cfg, opts)
	limiter := cfg.Limiter()
	sess := session.New(session.Config{
		Address:     cfg.Device.Address,
		Width:       l.Width(),
		Height:      l.Height(),
		DefaultLEDs: cfg.Device.DefaultLEDs,
		KeepAlive:   cfg.Device.KeepAlive,
		Post:        limiter.Apply,
		Strict:      cfg.Debug.StrictMapping,
	}, dial, discover, logger.With().Str("component", "session").Logger())

	if err := sess.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial connect failed; will retry")
	} else if !sess.AssertDirectControl(ctx) {
		logger.Warn().Msg("device did not accept realtime mode; will retry")
	}

	eng := render.NewEngine(sess)
	store := intent.NewStore(cfg.StatePath)
	cond := NewConductor(eng, sess, store, Sources(cfg, logger)...)
	cond.Renderer = render.NewRenderer(l.Width(), l.Height())
	cond.Icons = icons
	cond.Display = cfg.Display
	cond.Layout = l
	cond.Recon = cfg.Device.Reconnect
	cond.Log = logger.With().Str("component", "conductor").Logger()

	return &Core{
		Cfg:       cfg,
		Session:   sess,
		Eng:       eng,
		Conductor: cond,
		Intent:    store,
		Icons:     icons,
		Sim:       simDev,
	}, nil
}
