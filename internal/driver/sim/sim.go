// Package sim is a stand-in for a Twinkly device. It answers the same calls
// the session makes and paints every realtime frame into the terminal, so
// the daemon can run without hardware.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/devices/v3/screen1d"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/led"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/session"
	"github.com/coreman2200/twinkly-weather/internal/twinkly"
)

var (
	ErrClosed      = errors.New("sim: device closed")
	ErrUnreachable = errors.New("sim: device unreachable")
)

type Options struct {
	Layout layout.Layout
	// Out receives the panel drawing; nil means stdout. Use io.Discard to
	// run headless.
	Out io.Writer
	// Strip also prints the raw native-order frame as a one-line LED strip.
	Strip bool
	// NoLayout makes the device report no coordinates.
	NoLayout bool
	// RTTimeout drops out of realtime mode when no frame arrived for this
	// long; zero keeps realtime mode forever.
	RTTimeout time.Duration
	Now       func() time.Time
}

// Device is one simulated device. Safe for concurrent use.
type Device struct {
	opts   Options
	coords []twinkly.Coordinate
	lut    led.LUT

	mu        sync.Mutex
	mode      twinkly.Mode
	lastFrame time.Time
	closed    bool
	failDials int
	canvas    *render.Canvas
	panel     *Panel
	strip     *screen1d.Dev

	Frames  uint64
	Dropped uint64
	Dials   int
}

func New(opts Options) *Device {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	l := opts.Layout
	d := &Device{
		opts:   opts,
		mode:   twinkly.ModeMovie,
		canvas: render.NewCanvas(l.Width(), l.Height()),
		panel:  NewPanel(opts.Out, l.Width(), l.Height()),
	}
	coords := make([]led.Coordinate, 0, l.Count())
	for _, p := range l.Coordinates() {
		d.coords = append(d.coords, twinkly.Coordinate{X: p[0], Y: p[1]})
		coords = append(coords, led.Coordinate{X: p[0], Y: p[1]})
	}
	d.lut = led.BuildLUT(coords, l.Width(), l.Height())
	if opts.Strip {
		d.strip = screen1d.New(&screen1d.Opts{X: l.Count()})
	}
	return d
}

// FailDials makes the next n dials fail, as if the device were offline.
func (d *Device) FailDials(n int) {
	d.mu.Lock()
	d.failDials = n
	d.mu.Unlock()
}

// Dial implements session.Dialer. Every dial reopens the same device.
func (d *Device) Dial(_ context.Context, addr string) (session.Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.failDials > 0 {
		d.failDials--
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, addr)
	}
	d.closed = false
	return d, nil
}

// Discover implements session.Discoverer.
func (d *Device) Discover(context.Context) ([]string, error) {
	return []string{"sim"}, nil
}

func (d *Device) Gestalt(context.Context) (*twinkly.Gestalt, error) {
	n := d.opts.Layout.Count()
	return &twinkly.Gestalt{ProductName: "Twinkly Square (sim)", DeviceName: "sim", NumberOfLED: &n}, nil
}

func (d *Device) Layout(context.Context) (*twinkly.Layout, error) {
	if d.opts.NoLayout {
		return nil, fmt.Errorf("%w: no layout", twinkly.ErrCode)
	}
	return &twinkly.Layout{Source: "2d", Coordinates: append([]twinkly.Coordinate(nil), d.coords...)}, nil
}

func (d *Device) SetMode(_ context.Context, m twinkly.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.mode = m
	d.lastFrame = d.opts.Now()
	return nil
}

// Mode reports the current mode, leaving realtime after RTTimeout.
func (d *Device) Mode() twinkly.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expire()
	return d.mode
}

func (d *Device) expire() {
	if d.mode == twinkly.ModeRealtime && d.opts.RTTimeout > 0 &&
		d.opts.Now().Sub(d.lastFrame) >= d.opts.RTTimeout {
		d.mode = twinkly.ModeMovie
	}
}

// Write takes a native-order frame. Like the real device it silently
// ignores frames while not in realtime mode.
func (d *Device) Write(rgb []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if len(rgb)%3 != 0 {
		return fmt.Errorf("sim: frame length %d is not a multiple of 3", len(rgb))
	}
	d.expire()
	if d.mode != twinkly.ModeRealtime {
		d.Dropped++
		return nil
	}
	d.lastFrame = d.opts.Now()
	d.Frames++

	d.canvas.Fill(render.Black)
	for i, cell := range d.lut {
		if 3*i+2 >= len(rgb) {
			break
		}
		d.canvas.Set(cell%d.canvas.W, cell/d.canvas.W, render.Color{R: rgb[3*i], G: rgb[3*i+1], B: rgb[3*i+2]})
	}
	if d.strip != nil {
		if _, err := d.strip.Write(rgb); err != nil {
			return err
		}
	}
	return d.panel.Draw(d.panel.Bounds(), d.canvas, d.canvas.Bounds().Min)
}

// Canvas returns a copy of what the panel currently shows.
func (d *Device) Canvas() *render.Canvas {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := render.NewCanvas(d.canvas.W, d.canvas.H)
	copy(c.Pix, d.canvas.Pix)
	return c
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Halt restores the terminal.
func (d *Device) Halt() error {
	if d.strip != nil {
		_ = d.strip.Halt()
	}
	return d.panel.Halt()
}

var _ session.Device = &Device{}
