// Command twinklyctl pokes a Twinkly device by hand: discovery, layout dumps
// and one-off frames.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/twinkly-weather/internal/app"
	"github.com/coreman2200/twinkly-weather/internal/config"
	"github.com/coreman2200/twinkly-weather/internal/icon"
	"github.com/coreman2200/twinkly-weather/internal/provider"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/render/scenes"
	"github.com/coreman2200/twinkly-weather/internal/session"
	"github.com/coreman2200/twinkly-weather/internal/twinkly"
)

const usage = `usage: twinklyctl [flags] <command> [args]

commands:
  discover                 list devices answering on the LAN
  coords                   print the LED layout and the cell each LED shows
  clear                    turn every LED off
  fill  -color RRGGBB      fill the display with one colour
  show  -label L -value V  render one reading
  clock                    render the current time
  play  -name N -for D     play a condition scene
  mode  NAME               hand the device back to off | movie | demo

flags:
`

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		device     = flag.String("device", "", "device IP; empty discovers on the LAN")
		sim        = flag.Bool("sim", false, "use the simulated device")
		hold       = flag.Duration("hold", 0, "keep direct control for this long after drawing")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	cfg, err := config.Load(*configPath)
	if err != nil {
		cfg = config.Default()
	}
	cfg.ApplyEnv(os.Getenv)
	if *device != "" {
		cfg.Device.Address = *device
	}
	if *sim {
		cfg.Device.Driver = "sim"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	if cmd == "discover" {
		discover(ctx, cfg)
		return
	}

	sess := connect(ctx, cfg)
	defer sess.Close()
	l := cfg.Layout()
	r := render.NewRenderer(l.Width(), l.Height())

	switch cmd {
	case "coords":
		coords(sess, l.Width(), l.Height())
		return
	case "clear":
		if !sess.Clear(ctx) {
			log.Fatal().Msg("clear failed")
		}
		return
	case "fill":
		fs := flag.NewFlagSet("fill", flag.ExitOnError)
		col := fs.String("color", "ffffff", "colour as RRGGBB")
		_ = fs.Parse(args)
		show(ctx, sess, scenes.NewSolid(l.Width(), l.Height(), parseColor(*col)).Frame(0))
	case "show":
		fs := flag.NewFlagSet("show", flag.ExitOnError)
		label := fs.String("label", "Ute", "reading label; selects icon and kind")
		value := fs.Float64("value", 0, "value to show")
		decimals := fs.Int("decimals", 1, "digits after the decimal point")
		icons := fs.String("icons", cfg.Display.IconsPath, "icons file")
		_ = fs.Parse(args)
		set, err := icon.Load(*icons, l.Width(), l.Height())
		if err != nil {
			log.Warn().Err(err).Msg("icons not loaded")
		}
		style := render.Style{Kind: provider.ClassifyLabel(*label), Decimals: *decimals, Icon: set.For(*label)}
		show(ctx, sess, r.RenderValue(*value, style))
	case "clock":
		now := time.Now()
		show(ctx, sess, r.RenderClock(now.Hour(), now.Minute()))
	case "play":
		fs := flag.NewFlagSet("play", flag.ExitOnError)
		name := fs.String("name", scenes.Rain, "scene name")
		d := fs.Duration("for", 5*time.Second, "how long to play")
		_ = fs.Parse(args)
		reg := render.NewRegistry()
		scenes.Register(reg)
		a, ok := reg.New(*name, l.Width(), l.Height())
		if !ok {
			log.Fatal().Str("name", *name).Strs("known", reg.List()).Msg("unknown scene")
		}
		if err := render.NewEngine(sess).PlayFor(ctx, a, *d); err != nil {
			log.Fatal().Err(err).Msg("play")
		}
	case "mode":
		if len(args) != 1 {
			log.Fatal().Msg("mode needs one of off, movie, demo, rt")
		}
		m, err := twinkly.ParseMode(args[0])
		if err != nil {
			log.Fatal().Err(err).Msg("mode")
		}
		if err := sess.Release(ctx, m); err != nil {
			log.Fatal().Err(err).Msg("mode")
		}
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	if *hold > 0 {
		holdControl(ctx, sess, *hold, cfg.Device.KeepAlive)
	}
}

func discover(ctx context.Context, cfg *config.Config) {
	if cfg.Device.Driver == "sim" {
		fmt.Println("sim")
		return
	}
	devs, err := twinkly.Discover(ctx, cfg.Device.DiscoveryTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("discover")
	}
	if len(devs) == 0 {
		log.Warn().Msg("no devices answered")
	}
	for _, d := range devs {
		fmt.Printf("%-15s %s\n", d.IP, d.Name)
	}
}

func connect(ctx context.Context, cfg *config.Config) *session.Session {
	l := cfg.Layout()
	dial, disc, _ := app.Dialers(cfg, app.Options{Logger: log.Logger})
	limiter := cfg.Limiter()
	sess := session.New(session.Config{
		Address:     cfg.Device.Address,
		Width:       l.Width(),
		Height:      l.Height(),
		DefaultLEDs: cfg.Device.DefaultLEDs,
		KeepAlive:   cfg.Device.KeepAlive,
		Post:        limiter.Apply,
	}, dial, disc, log.Logger)
	if err := sess.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	if !sess.AssertDirectControl(ctx) {
		log.Fatal().Msg("device refused realtime mode")
	}
	log.Info().Str("addr", sess.Address()).Int("leds", sess.LEDCount()).Bool("layout", sess.HasLayout()).Msg("connected")
	return sess
}

func coords(sess *session.Session, w, h int) {
	cs := sess.Coordinates()
	if len(cs) == 0 {
		fmt.Println("no layout; frames use raster order")
		return
	}
	for i, c := range cs {
		col, row := c.Cell(w, h)
		fmt.Printf("%4d  x=%+.3f y=%+.3f  cell=(%d,%d)\n", i, c.X, c.Y, col, row)
	}
}

func show(ctx context.Context, sess *session.Session, c *render.Canvas) {
	if !sess.Show(ctx, c) {
		log.Fatal().Msg("frame not shown")
	}
}

// holdControl keeps realtime mode alive so the frame stays up.
func holdControl(ctx context.Context, sess *session.Session, d, every time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !sess.KeepAlive(ctx) {
				log.Warn().Msg("keep-alive failed")
			}
		}
	}
}

func parseColor(s string) render.Color {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(b) != 3 {
		log.Fatal().Str("color", s).Msg("colour must be RRGGBB")
	}
	return render.Color{R: b[0], G: b[1], B: b[2]}
}
