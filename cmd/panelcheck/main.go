// Command panelcheck walks a wiring check on the device, one step at a time,
// so panel order and LED chaining can be verified by eye.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/twinkly-weather/internal/app"
	"github.com/coreman2200/twinkly-weather/internal/config"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/session"
	"github.com/coreman2200/twinkly-weather/internal/tests"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		device     = flag.String("device", "", "device IP; empty discovers on the LAN")
		sim        = flag.Bool("sim", false, "use the simulated device")
		kind       = flag.String("test", string(tests.PanelSweep), fmt.Sprintf("check to run: %v", tests.Kinds))
		stride     = flag.Int("stride", 1, "index_sweep: light every n-th LED")
		step       = flag.Duration("step", 0, "time per step; 0 waits for Enter")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	k, err := tests.Parse(*kind)
	if err != nil {
		log.Fatal().Err(err).Msg("test")
	}
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
	l := cfg.Layout()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dial, disc, _ := app.Dialers(cfg, app.Options{Logger: log.Logger})
	sess := session.New(session.Config{
		Address:     cfg.Device.Address,
		Width:       l.Width(),
		Height:      l.Height(),
		DefaultLEDs: cfg.Device.DefaultLEDs,
		KeepAlive:   cfg.Device.KeepAlive,
		Strict:      true,
	}, dial, disc, log.Logger)
	if err := sess.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("connect")
	}
	defer sess.Close()
	if !sess.AssertDirectControl(ctx) {
		log.Fatal().Msg("device refused realtime mode")
	}
	if !sess.HasLayout() {
		log.Warn().Msg("device reported no layout; canvas steps use raster order")
	}

	r := tests.NewRunner(tests.Plan{Kind: k, LEDs: sess.LEDCount(), Stride: *stride})
	total := r.Len(l)
	in := bufio.NewScanner(os.Stdin)
	for i := 1; ; i++ {
		st, ok := r.Next(l)
		if !ok {
			break
		}
		if !sess.KeepAlive(ctx) {
			log.Fatal().Msg("lost direct control")
		}
		var shown bool
		if st.Canvas != nil {
			shown = sess.Show(ctx, st.Canvas)
		} else {
			shown = sess.Push(ctx, st.Frame)
		}
		if !shown {
			log.Fatal().Str("step", st.Label).Msg("push failed")
		}
		fmt.Printf("[%d/%d] %s\n", i, total, st.Label)

		if *step > 0 {
			if render.SleepContext(ctx, *step) != nil {
				break
			}
			continue
		}
		fmt.Print("Enter for next step... ")
		if !in.Scan() {
			break
		}
	}

	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess.Clear(cctx)
	log.Info().Str("test", string(k)).Msg("done")
}
