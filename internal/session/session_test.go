package session

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/led"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/twinkly"
)

type fakeDevice struct {
	leds      *int
	coords    []twinkly.Coordinate
	layoutErr error
	modeErr   error
	writeErr  error
	modes     []twinkly.Mode
	frames    [][]byte
	closed    bool
}

func (d *fakeDevice) Write(rgb []byte) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	d.frames = append(d.frames, append([]byte(nil), rgb...))
	return nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDevice) Gestalt(context.Context) (*twinkly.Gestalt, error) {
	return &twinkly.Gestalt{NumberOfLED: d.leds}, nil
}

func (d *fakeDevice) Layout(context.Context) (*twinkly.Layout, error) {
	if d.layoutErr != nil {
		return nil, d.layoutErr
	}
	return &twinkly.Layout{Coordinates: d.coords}, nil
}

func (d *fakeDevice) SetMode(_ context.Context, m twinkly.Mode) error {
	if d.modeErr != nil {
		return d.modeErr
	}
	d.modes = append(d.modes, m)
	return nil
}

func squareCoords() []twinkly.Coordinate {
	var out []twinkly.Coordinate
	for _, p := range layout.Default().Coordinates() {
		out = append(out, twinkly.Coordinate{X: p[0], Y: p[1]})
	}
	return out
}

func intp(v int) *int { return &v }

func newSession(cfg Config, dial Dialer, disc Discoverer) (*Session, *[]time.Duration) {
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 24, 16
	}
	s := New(cfg, dial, disc, zerolog.Nop())
	var slept []time.Duration
	s.Sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func staticDial(d *fakeDevice) Dialer {
	return func(context.Context, string) (Device, error) { return d, nil }
}

func TestConnectUsesDiscovery(t *testing.T) {
	dev := &fakeDevice{leds: intp(384), coords: squareCoords()}
	var dialed []string
	dial := func(_ context.Context, addr string) (Device, error) {
		dialed = append(dialed, addr)
		return dev, nil
	}
	discovered := 0
	disc := func(context.Context) ([]string, error) {
		discovered++
		return []string{"10.0.0.7", "10.0.0.8"}, nil
	}
	s, _ := newSession(Config{}, dial, disc)
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, "10.0.0.7", s.Address())
	assert.Equal(t, 384, s.LEDCount())
	assert.True(t, s.HasLayout())

	assert.Equal(t, 1, discovered)
	assert.Equal(t, []string{"10.0.0.7"}, dialed)
}

func TestReconnectDiscoversAgain(t *testing.T) {
	dev := &fakeDevice{leds: intp(384), coords: squareCoords()}
	var dialed []string
	dial := func(_ context.Context, addr string) (Device, error) {
		dialed = append(dialed, addr)
		if addr == "10.0.0.5" {
			return nil, errors.New("no route to host")
		}
		return dev, nil
	}
	answers := [][]string{{"10.0.0.5"}, {"10.0.0.5"}, {"10.0.0.9"}}
	disc := func(context.Context) ([]string, error) {
		a := answers[0]
		if len(answers) > 1 {
			answers = answers[1:]
		}
		return a, nil
	}
	s, _ := newSession(Config{}, dial, disc)
	require.Error(t, s.Connect(context.Background()))

	// the device took a new lease; reconnect must find it
	res := s.Reconnect(context.Background(), 5, time.Second)
	assert.True(t, res.OK)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, []string{"10.0.0.5", "10.0.0.5", "10.0.0.9"}, dialed)
	assert.Equal(t, "10.0.0.9", s.Address())
}

func TestReconnectKeepsConfiguredAddress(t *testing.T) {
	dev := &fakeDevice{leds: intp(384)}
	var dialed []string
	dial := func(_ context.Context, addr string) (Device, error) {
		dialed = append(dialed, addr)
		return dev, nil
	}
	disc := func(context.Context) ([]string, error) {
		t.Fatal("discovery must not run with a configured address")
		return nil, nil
	}
	s, _ := newSession(Config{Address: "192.168.1.40"}, dial, disc)
	require.NoError(t, s.Connect(context.Background()))
	require.True(t, s.Reconnect(context.Background(), 1, 0).OK)
	assert.Equal(t, []string{"192.168.1.40", "192.168.1.40"}, dialed)
}

func TestReconnectRefetchesCoordinates(t *testing.T) {
	first := &fakeDevice{leds: intp(384), coords: squareCoords()}
	moved := squareCoords()
	moved[0], moved[1] = moved[1], moved[0]
	second := &fakeDevice{leds: intp(384), coords: moved}
	third := &fakeDevice{leds: intp(384), layoutErr: errors.New("layout not supported")}
	devs := []*fakeDevice{first, second, third}
	dial := func(context.Context, string) (Device, error) {
		d := devs[0]
		devs = devs[1:]
		return d, nil
	}
	s, _ := newSession(Config{Address: "a"}, dial, nil)
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, first.coords[0].X, s.Coordinates()[0].X)
	m1 := s.Mapper()

	require.True(t, s.Reconnect(context.Background(), 1, 0).OK)
	assert.True(t, first.closed)
	require.Len(t, s.Coordinates(), 384)
	assert.Equal(t, moved[0].X, s.Coordinates()[0].X)
	assert.Equal(t, moved[0].Y, s.Coordinates()[0].Y)
	assert.NotSame(t, m1, s.Mapper())

	// the LED that used to show cell (0,15) now sits second in the chain
	c := render.NewCanvas(24, 16)
	c.Set(0, 15, render.White)
	require.True(t, s.Show(context.Background(), c))
	assert.Equal(t, []byte{0, 0, 0, 255, 255, 255}, second.frames[0][0:6])

	require.True(t, s.Reconnect(context.Background(), 1, 0).OK)
	assert.False(t, s.HasLayout())
	assert.Nil(t, s.Coordinates())
	assert.True(t, s.Mapper().Raster())
}

func TestConnectLogsLayoutMismatch(t *testing.T) {
	var buf bytes.Buffer
	dev := &fakeDevice{leds: intp(500), coords: squareCoords()}
	s := New(Config{Address: "a", Width: 24, Height: 16}, staticDial(dev), nil, zerolog.New(&buf))
	require.NoError(t, s.Connect(context.Background()))
	assert.Contains(t, buf.String(), "layout does not match the LED count")
	assert.Contains(t, buf.String(), "layout has 384 LEDs, device reports 500")

	buf.Reset()
	dev.leds = intp(384)
	require.NoError(t, s.Connect(context.Background()))
	assert.NotContains(t, buf.String(), "does not match")
}

func TestConnectWithoutDevices(t *testing.T) {
	disc := func(context.Context) ([]string, error) { return nil, nil }
	s, _ := newSession(Config{}, staticDial(&fakeDevice{}), disc)
	err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoDevices)
	assert.Equal(t, Disconnected, s.State())
}

func TestConnectDefaultsAndRasterFallback(t *testing.T) {
	dev := &fakeDevice{layoutErr: errors.New("no layout")}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, 384, s.LEDCount())
	assert.False(t, s.HasLayout())
	assert.True(t, s.Mapper().Raster())

	c := render.NewCanvas(24, 16)
	c.Set(1, 0, render.White)
	require.True(t, s.Show(context.Background(), c))
	require.Len(t, dev.frames, 1)
	assert.Len(t, dev.frames[0], 3*384)
	assert.Equal(t, byte(255), dev.frames[0][3])
}

func TestShowMapsThroughCoordinates(t *testing.T) {
	dev := &fakeDevice{leds: intp(384), coords: squareCoords()}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	require.NoError(t, s.Connect(context.Background()))

	c := render.NewCanvas(24, 16)
	c.Set(0, 15, render.White)
	require.True(t, s.Show(context.Background(), c))
	// bottom-left cell is the first LED of the chain
	assert.Equal(t, []byte{255, 255, 255}, dev.frames[0][0:3])
}

func TestPushRejectsLengthMismatch(t *testing.T) {
	dev := &fakeDevice{leds: intp(500), coords: squareCoords()}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	require.NoError(t, s.Connect(context.Background()))
	assert.False(t, s.Show(context.Background(), render.NewCanvas(24, 16)))
	assert.Equal(t, Disconnected, s.State())
	assert.Empty(t, dev.frames)

	strict, _ := newSession(Config{Address: "a", Strict: true}, staticDial(dev), nil)
	require.NoError(t, strict.Connect(context.Background()))
	assert.Panics(t, func() { strict.Push(context.Background(), led.Black(384)) })
}

func TestPushFailureIsBoolean(t *testing.T) {
	dev := &fakeDevice{writeErr: errors.New("network unreachable")}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	require.NoError(t, s.Connect(context.Background()))
	assert.False(t, s.Push(context.Background(), led.Black(384)))
	assert.Equal(t, Disconnected, s.State())

	var none Session
	assert.False(t, none.Push(context.Background(), led.Black(1)))
	assert.False(t, none.Clear(context.Background()))
}

func TestKeepAliveEvery30Seconds(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	now := time.Unix(1000, 0)
	s.Now = func() time.Time { return now }
	require.NoError(t, s.Connect(context.Background()))
	require.True(t, s.AssertDirectControl(context.Background()))

	now = now.Add(29 * time.Second)
	assert.True(t, s.KeepAlive(context.Background()))
	assert.Len(t, dev.modes, 1)

	now = now.Add(time.Second)
	assert.True(t, s.KeepAlive(context.Background()))
	assert.Equal(t, []twinkly.Mode{twinkly.ModeRealtime, twinkly.ModeRealtime}, dev.modes)
}

func TestReconnectSucceedsOnFifthAttempt(t *testing.T) {
	dev := &fakeDevice{leds: intp(384)}
	attempts := 0
	dial := func(context.Context, string) (Device, error) {
		attempts++
		if attempts < 5 {
			return nil, errors.New("connection refused")
		}
		return dev, nil
	}
	s, slept := newSession(Config{Address: "a"}, dial, nil)
	res := s.Reconnect(context.Background(), 5, 2*time.Second)
	assert.True(t, res.OK)
	assert.Equal(t, 5, res.Attempts)
	assert.False(t, res.Exhausted)
	assert.Equal(t, 5, attempts)
	assert.Len(t, *slept, 4)
	assert.Equal(t, 2*time.Second, (*slept)[0])
	assert.Equal(t, Connected, s.State())
	assert.Equal(t, []twinkly.Mode{twinkly.ModeRealtime}, dev.modes)
}

func TestReconnectExhausts(t *testing.T) {
	dev := &fakeDevice{modeErr: errors.New("busy")}
	s, slept := newSession(Config{Address: "a"}, staticDial(dev), nil)
	res := s.Reconnect(context.Background(), 3, time.Second)
	assert.False(t, res.OK)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 3, res.Attempts)
	assert.Len(t, *slept, 2)
	assert.Equal(t, Exhausted, s.State())
	assert.True(t, dev.closed)
}

func TestReconnectStopsOnCancel(t *testing.T) {
	dial := func(context.Context, string) (Device, error) { return nil, errors.New("down") }
	s, _ := newSession(Config{Address: "a"}, dial, nil)
	ctx, cancel := context.WithCancel(context.Background())
	s.Sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	res := s.Reconnect(ctx, 5, time.Second)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestClearPushesBlack(t *testing.T) {
	dev := &fakeDevice{leds: intp(384), coords: squareCoords()}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	require.NoError(t, s.Connect(context.Background()))
	require.True(t, s.Clear(context.Background()))
	assert.Equal(t, make([]byte, 3*384), dev.frames[0])
}

func TestReleaseHandsBackControl(t *testing.T) {
	dev := &fakeDevice{}
	s, _ := newSession(Config{Address: "a"}, staticDial(dev), nil)
	now := time.Unix(1000, 0)
	s.Now = func() time.Time { return now }
	assert.ErrorIs(t, s.Release(context.Background(), twinkly.ModeOff), ErrNotConnected)

	require.NoError(t, s.Connect(context.Background()))
	require.True(t, s.AssertDirectControl(context.Background()))
	require.NoError(t, s.Release(context.Background(), twinkly.ModeOff))
	assert.Equal(t, []twinkly.Mode{twinkly.ModeRealtime, twinkly.ModeOff}, dev.modes)

	// the next keep-alive takes control again right away
	assert.True(t, s.KeepAlive(context.Background()))
	assert.Equal(t, twinkly.ModeRealtime, dev.modes[2])

	dev.modeErr = errors.New("busy")
	assert.Error(t, s.Release(context.Background(), twinkly.ModeMovie))
}
