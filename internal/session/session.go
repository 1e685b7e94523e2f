// Package session owns the direct-control ("rt") session with one device:
// connecting, periodic re-assertion, frame pushes and reconnection.
// A Session is used by a single goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/led"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/twinkly"
)

// ErrNoDevices is returned by Connect when discovery finds nothing.
var ErrNoDevices = errors.New("no devices found")

var ErrNotConnected = errors.New("not connected")

// Device is the wire-level handle to one device.
type Device interface {
	led.Driver
	Gestalt(ctx context.Context) (*twinkly.Gestalt, error)
	Layout(ctx context.Context) (*twinkly.Layout, error)
	SetMode(ctx context.Context, m twinkly.Mode) error
}

// Dialer opens an authenticated handle to the device at addr.
type Dialer func(ctx context.Context, addr string) (Device, error)

// Discoverer returns candidate device addresses.
type Discoverer func(ctx context.Context) ([]string, error)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Exhausted
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Exhausted:
		return "exhausted"
	default:
		return "disconnected"
	}
}

type Config struct {
	// Address of the device; empty means discover.
	Address string
	// Canvas size the mapper expects.
	Width, Height int
	// LED count assumed when the device does not report one.
	DefaultLEDs int
	// Interval after which direct control is re-asserted.
	KeepAlive time.Duration
	// Post runs on every mapped frame.
	Post func(led.Frame)
	// Strict panics on mapping inconsistencies instead of failing the push.
	Strict bool
}

// Result reports the outcome of Reconnect.
type Result struct {
	OK        bool
	Attempts  int
	Exhausted bool
	Err       error
}

type Session struct {
	cfg      Config
	dial     Dialer
	discover Discoverer
	log      zerolog.Logger

	// Sleep waits between reconnect attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is the clock used for keep-alive; tests replace it.
	Now func() time.Time

	state    State
	addr     string
	dev      Device
	leds     int
	coords   []led.Coordinate
	mapper   *led.Mapper
	asserted time.Time
}

func New(cfg Config, dial Dialer, discover Discoverer, logger zerolog.Logger) *Session {
	if cfg.DefaultLEDs <= 0 {
		cfg.DefaultLEDs = 384
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 30 * time.Second
	}
	return &Session{
		cfg:      cfg,
		dial:     dial,
		discover: discover,
		log:      logger,
		Sleep:    render.SleepContext,
		Now:      time.Now,
		addr:     cfg.Address,
	}
}

func (s *Session) State() State        { return s.state }
func (s *Session) Address() string     { return s.addr }
func (s *Session) LEDCount() int       { return s.leds }
func (s *Session) HasLayout() bool     { return len(s.coords) > 0 }
func (s *Session) Mapper() *led.Mapper { return s.mapper }

// Coordinates returns the cached LED coordinates, nil in raster fallback.
func (s *Session) Coordinates() []led.Coordinate { return s.coords }

// Connect resolves the address, opens a handle and reads the LED count and
// layout. A missing layout is not an error; frames fall back to raster order.
func (s *Session) Connect(ctx context.Context) error {
	s.state = Connecting
	if err := s.connect(ctx); err != nil {
		s.state = Disconnected
		return err
	}
	s.state = Connected
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	if s.addr == "" {
		if s.discover == nil {
			return ErrNoDevices
		}
		addrs, err := s.discover(ctx)
		if err != nil {
			return fmt.Errorf("discover: %w", err)
		}
		if len(addrs) == 0 {
			return ErrNoDevices
		}
		s.addr = addrs[0]
		s.log.Info().Str("addr", s.addr).Msg("device discovered")
	}

	dev, err := s.dial(ctx, s.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	g, err := dev.Gestalt(ctx)
	if err != nil {
		_ = dev.Close()
		return fmt.Errorf("gestalt: %w", err)
	}
	s.dev = dev
	s.leds = g.LEDs(s.cfg.DefaultLEDs)

	s.coords = nil
	if l, err := dev.Layout(ctx); err != nil {
		s.log.Warn().Err(err).Msg("layout unavailable; using raster order")
	} else {
		for _, c := range l.Coordinates {
			s.coords = append(s.coords, led.Coordinate{X: c.X, Y: c.Y})
		}
	}
	s.mapper = led.NewMapper(s.cfg.Width, s.cfg.Height, s.coords)
	s.mapper.Post = s.cfg.Post
	if err := s.mapper.Check(s.leds); err != nil {
		s.log.Error().Err(err).Msg("layout does not match the LED count; pushes will fail")
	}
	s.log.Info().
		Str("addr", s.addr).
		Int("leds", s.leds).
		Int("coordinates", len(s.coords)).
		Msg("connected")
	return nil
}

// AssertDirectControl switches the device to realtime mode.
func (s *Session) AssertDirectControl(ctx context.Context) bool {
	if s.dev == nil {
		return false
	}
	if err := s.dev.SetMode(ctx, twinkly.ModeRealtime); err != nil {
		s.log.Warn().Err(err).Msg("set realtime mode failed")
		return false
	}
	s.asserted = s.Now()
	return true
}

// Release hands the device over to mode m, e.g. off or movie. Direct
// control has to be asserted again before the next push.
func (s *Session) Release(ctx context.Context, m twinkly.Mode) error {
	if s.dev == nil {
		return ErrNotConnected
	}
	if err := s.dev.SetMode(ctx, m); err != nil {
		return fmt.Errorf("set mode %s: %w", m, err)
	}
	s.asserted = time.Time{}
	return nil
}

// KeepAlive re-asserts direct control when the keep-alive interval has
// elapsed. It reports false only when a due re-assertion failed.
func (s *Session) KeepAlive(ctx context.Context) bool {
	if s.dev == nil {
		return false
	}
	if s.Now().Sub(s.asserted) < s.cfg.KeepAlive {
		return true
	}
	return s.AssertDirectControl(ctx)
}

// Push sends a native-order frame. Failures are logged and reported as
// false; the session is then Disconnected until Reconnect.
func (s *Session) Push(ctx context.Context, f led.Frame) bool {
	if s.dev == nil {
		return false
	}
	if s.mapper != nil && !s.mapper.Raster() && f.LEDs() != s.leds {
		err := fmt.Errorf("%w: frame has %d LEDs, device reports %d", led.ErrFrameLength, f.LEDs(), s.leds)
		s.log.Error().Err(err).Msg("mapping inconsistency")
		if s.cfg.Strict {
			panic(err)
		}
		s.state = Disconnected
		return false
	}
	if err := s.dev.Write(f); err != nil {
		s.log.Warn().Err(err).Msg("push failed")
		s.state = Disconnected
		return false
	}
	return true
}

// Show maps a canvas to the device order and pushes it. It implements
// render.Sink.
func (s *Session) Show(ctx context.Context, c *render.Canvas) bool {
	if s.mapper == nil {
		return false
	}
	return s.Push(ctx, s.mapper.Frame(c))
}

// Reconnect drops the handle and connects again, up to maxAttempts with
// delay between them. Coordinates are fetched anew on every attempt, and a
// discovered address is discovered again since the device may have moved.
func (s *Session) Reconnect(ctx context.Context, maxAttempts int, delay time.Duration) Result {
	s.state = Reconnecting
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		s.teardown()
		s.addr = s.cfg.Address
		err := s.connect(ctx)
		if err == nil && s.AssertDirectControl(ctx) {
			s.state = Connected
			s.log.Info().Int("attempt", attempt).Msg("reconnected")
			return Result{OK: true, Attempts: attempt}
		}
		if err == nil {
			err = errors.New("realtime mode not accepted")
		}
		s.log.Warn().Err(err).Int("attempt", attempt).Int("max", maxAttempts).Msg("reconnect failed")
		if attempt == maxAttempts {
			break
		}
		if err := s.Sleep(ctx, delay); err != nil {
			s.state = Disconnected
			return Result{Attempts: attempt, Err: err}
		}
	}
	s.teardown()
	s.state = Exhausted
	return Result{Attempts: maxAttempts, Exhausted: true}
}

// Clear pushes an all-black frame.
func (s *Session) Clear(ctx context.Context) bool {
	if s.mapper == nil {
		return false
	}
	return s.Show(ctx, render.NewCanvas(s.cfg.Width, s.cfg.Height))
}

// Close releases the device handle.
func (s *Session) Close() error {
	err := s.teardownErr()
	s.state = Disconnected
	return err
}

func (s *Session) teardown() { _ = s.teardownErr() }

func (s *Session) teardownErr() error {
	if s.dev == nil {
		return nil
	}
	err := s.dev.Close()
	s.dev = nil
	return err
}
