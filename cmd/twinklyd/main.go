package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/twinkly-weather/internal/app"
	"github.com/coreman2200/twinkly-weather/internal/config"
	"github.com/coreman2200/twinkly-weather/internal/ws"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (overrides server.addr)")
		driver     = flag.String("driver", "", "device driver: twinkly | sim (overrides device.driver)")
		device     = flag.String("device", "", "device IP; empty discovers on the LAN")
		simOnly    = flag.Bool("sim-only", false, "force the simulated device")
		draw       = flag.Bool("draw", true, "draw the simulated device in the terminal")
		level      = flag.String("log-level", "info", "log level: debug | info | warn | error")
		initConfig = flag.Bool("init-config", false, "write the default config to -config and exit")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", *level).Msg("unknown log level; using info")
	}

	if *initConfig {
		if err := config.Save(*configPath, config.Default()); err != nil {
			log.Fatal().Err(err).Str("path", *configPath).Msg("write config")
		}
		log.Info().Str("path", *configPath).Msg("default config written")
		return
	}

	// ---- Config: defaults, then file, then environment, then flags ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	cfg.ApplyEnv(os.Getenv)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *driver != "" {
		cfg.Device.Driver = *driver
	}
	if *device != "" {
		cfg.Device.Address = *device
	}
	if *simOnly {
		cfg.Device.Driver = "sim"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := app.Options{Logger: log.Logger}
	if !*draw {
		opts.SimOut = io.Discard
	}
	core, err := app.InitCore(ctx, cfg, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("init")
	}

	// ---- Preview, diagnostics and control ----
	srv := ws.NewServer(cfg.Layout(), core.Intent, core.Conductor)
	srv.Icons = core.Icons
	srv.IconsPath = cfg.Display.IconsPath
	srv.Driver = cfg.Device.Driver
	core.Eng.Observe(srv.Publish)
	core.Conductor.Diag = srv.PushDiag

	hs := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      ws.WithCORS(srv.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("driver", cfg.Device.Driver).Msg("HTTP server starting")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Control loop until a signal arrives ----
	done := make(chan struct{})
	go func() {
		core.Conductor.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-done

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = hs.Shutdown(sctx)
	if err := core.Session.Close(); err != nil {
		log.Warn().Err(err).Msg("close session")
	}
	if core.Sim != nil {
		_ = core.Sim.Halt()
	}
}
