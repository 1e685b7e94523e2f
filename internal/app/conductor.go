// internal/app/conductor.go
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/config"
	diag "github.com/coreman2200/twinkly-weather/internal/diagnostics"
	"github.com/coreman2200/twinkly-weather/internal/intent"
	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/led"
	"github.com/coreman2200/twinkly-weather/internal/provider"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/render/scenes"
	"github.com/coreman2200/twinkly-weather/internal/sequence"
	"github.com/coreman2200/twinkly-weather/internal/session"
	"github.com/coreman2200/twinkly-weather/internal/tests"
)

// Display is the device side of the loop; *session.Session implements it.
type Display interface {
	render.Sink
	Push(ctx context.Context, f led.Frame) bool
	LEDCount() int
	KeepAlive(ctx context.Context) bool
	AssertDirectControl(ctx context.Context) bool
	Reconnect(ctx context.Context, maxAttempts int, delay time.Duration) session.Result
	Clear(ctx context.Context) bool
}

// Status is a snapshot of what the loop last did.
type Status struct {
	Intent     intent.Intent     `json:"intent"`
	Showing    string            `json:"showing"`
	Readings   provider.Readings `json:"readings"`
	Animation  string            `json:"animation,omitempty"`
	LastShown  time.Time         `json:"last_shown"`
	Failures   int               `json:"failures"`
	Reconnects int               `json:"reconnects"`
	Exhausted  bool              `json:"exhausted"`
	Test       string            `json:"test,omitempty"`
}

type Conductor struct {
	Eng      *render.Engine
	Disp     Display
	Intent   *intent.Store
	Sources  []provider.Source
	Renderer *render.Renderer
	Icons    render.IconSource
	Scenes   *render.Registry
	Display  config.Display
	Layout   layout.Layout
	Recon    config.Reconnect
	Diag     diag.Sink
	Log      zerolog.Logger

	// Now and Sleep are replaced in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	rot   *sequence.Rotation
	last  *render.Canvas
	prev  intent.Intent
	fresh bool

	wake      chan struct{}
	reconnect chan struct{}
	tests     chan tests.Plan

	mu     sync.RWMutex
	status Status
}

func NewConductor(eng *render.Engine, disp Display, store *intent.Store, sources ...provider.Source) *Conductor {
	reg := render.NewRegistry()
	scenes.Register(reg)
	def := config.Default()
	return &Conductor{
		Eng:       eng,
		Disp:      disp,
		Intent:    store,
		Sources:   sources,
		Scenes:    reg,
		Display:   def.Display,
		Layout:    def.Layout(),
		Recon:     def.Device.Reconnect,
		Log:       zerolog.Nop(),
		Now:       time.Now,
		Sleep:     render.SleepContext,
		rot:       sequence.NewRotation(),
		fresh:     true,
		wake:      make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
		tests:     make(chan tests.Plan, 1),
	}
}

// Wake cuts the current wait short, e.g. after the intent changed.
func (c *Conductor) Wake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// RequestReconnect asks the loop to rebuild the device session before the
// next cycle.
func (c *Conductor) RequestReconnect() {
	select {
	case c.reconnect <- struct{}{}:
	default:
	}
}

// RunTest queues a panel check. It reports false when one is already
// waiting.
func (c *Conductor) RunTest(plan tests.Plan) bool {
	select {
	case c.tests <- plan:
		c.Wake()
		return true
	default:
		return false
	}
}

func (c *Conductor) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.Readings = append(provider.Readings(nil), s.Readings...)
	return s
}

func (c *Conductor) update(fn func(s *Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// Run cycles until ctx is done, then clears the display.
func (c *Conductor) Run(ctx context.Context) {
	for ctx.Err() == nil {
		wait := c.Cycle(ctx)
		c.idle(ctx, wait)
	}
	cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if c.Disp.Clear(cctx) {
		c.Log.Info().Msg("display cleared")
	} else {
		c.Log.Warn().Msg("could not clear display")
	}
}

func (c *Conductor) idle(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-c.wake:
		select {
		case plan := <-c.tests:
			c.runTest(ctx, plan)
		default:
		}
	case plan := <-c.tests:
		c.runTest(ctx, plan)
	case <-t.C:
	case <-c.reconnect:
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeReconnectAsked, Summary: "Reconnect requested"})
		c.recover(ctx)
	}
}

// Cycle runs one pass of the loop and returns how long to wait before the
// next one.
func (c *Conductor) Cycle(ctx context.Context) time.Duration {
	if !c.Disp.KeepAlive(ctx) {
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Warn, Code: diag.CodeKeepAlive, Summary: "Direct control could not be re-asserted"})
		if !c.recover(ctx) {
			return 0
		}
	}

	in := c.Intent.Load()
	changed := in != c.prev
	if changed && !c.fresh {
		c.Log.Info().Str("mode", string(in.Mode)).Str("location", in.Location).Bool("clock", in.ClockEnabled()).Msg("intent changed")
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeIntentChanged, Summary: "Display intent changed",
			Evidence: map[string]any{"mode": in.Mode, "location": in.Location, "interval": in.Interval}})
	}
	// leaving single mode resumes the rotation at the location on screen
	resume := ""
	if changed && in.Mode == intent.Rotate && c.prev.Mode == intent.Single {
		resume = c.prev.Location
	}
	c.prev = in
	c.update(func(s *Status) { s.Intent = in })

	if in.ClockEnabled() {
		now := c.Now()
		c.show(ctx, c.Renderer.RenderClock(now.Hour(), now.Minute()), "clock")
		c.fresh = false
		return time.Second
	}

	rs := provider.Collect(ctx, c.Log, c.Sources...)
	c.update(func(s *Status) { s.Readings = rs })
	if len(rs) == 0 {
		c.Log.Warn().Msg("no readings available")
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Warn, Code: diag.CodeNoReadings, Summary: "No source returned a reading"})
		return in.Period()
	}
	c.rot.Sync(rs.Keys())
	if resume != "" {
		c.rot.Seek(resume)
	}

	key, _ := c.rot.Current()
	if in.Mode == intent.Single {
		key = in.Location
	}
	rd, ok := rs.Lookup(key)
	if !ok {
		c.Log.Warn().Str("key", key).Msg("reading not available")
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Warn, Code: diag.CodeUnknownKey, Summary: "Selected reading is not available",
			Evidence: map[string]any{"key": key, "available": rs.Keys()}})
		return in.Period()
	}

	if c.Display.Animate && !c.animate(ctx, rd) {
		return in.Period()
	}
	if ctx.Err() != nil {
		return 0
	}
	c.show(ctx, c.Renderer.RenderReading(rd, c.Icons), rd.Key)
	c.Log.Info().Str("key", rd.Key).Float64("value", rd.Value).Msg("showing")

	// a new intent is shown right away and the rotation holds its place
	if changed || c.fresh {
		c.fresh = false
		return time.Second
	}
	if in.Mode != intent.Single {
		c.rot.Advance()
	}
	return in.Period()
}

// animate plays the condition or alert scene for rd. It returns false when
// the cycle should end early.
func (c *Conductor) animate(ctx context.Context, rd provider.Reading) bool {
	name, d := "", c.Display.AnimationTime
	switch {
	case rd.Kind == provider.Price && scenes.ShouldAlert(rd.Value, c.Display.AlertThreshold):
		name, d = scenes.Alert, c.Display.AlertTime
	case rd.Symbol != "":
		name = scenes.ForSymbol(rd.Symbol)
	}
	if name == "" || d <= 0 {
		return true
	}
	a, ok := c.Scenes.New(name, c.Renderer.W, c.Renderer.H)
	if !ok {
		return true
	}
	c.update(func(s *Status) { s.Animation = name })
	defer c.update(func(s *Status) { s.Animation = "" })

	err := c.Eng.PlayFor(ctx, a, d)
	switch {
	case err == nil:
		return true
	case errors.Is(err, render.ErrShow):
		c.failed(ctx)
		return false
	default:
		return false
	}
}

func (c *Conductor) show(ctx context.Context, cv *render.Canvas, label string) {
	var err error
	if c.Display.CrossfadeSteps > 1 && c.last != nil {
		err = c.Eng.Fade(ctx, c.last, cv, c.Display.CrossfadeSteps, time.Second/2)
	} else if !c.Eng.Show(ctx, cv) {
		err = render.ErrShow
	}
	c.last = cv
	if err == nil {
		c.update(func(s *Status) {
			s.Showing = label
			s.LastShown = c.Now()
		})
		return
	}
	if errors.Is(err, render.ErrShow) && c.failed(ctx) {
		c.Eng.Show(ctx, cv)
	}
}

// failed handles a push that did not reach the device. It reports whether
// the device is usable again.
func (c *Conductor) failed(ctx context.Context) bool {
	c.update(func(s *Status) { s.Failures++ })
	c.Diag.Emit(diag.Diagnostic{Severity: diag.Warn, Code: diag.CodePushFailed, Summary: "Frame push failed",
		LikelyCauses: []string{"device rebooted or left realtime mode", "network unreachable"}})
	if c.Disp.AssertDirectControl(ctx) {
		c.Log.Info().Msg("realtime mode re-asserted after failed push")
	}
	return c.recover(ctx)
}

// runTest shows every step of a panel check, holding each for TestStep.
// The next cycle puts the reading back.
func (c *Conductor) runTest(ctx context.Context, plan tests.Plan) {
	if plan.LEDs == 0 {
		plan.LEDs = c.Disp.LEDCount()
	}
	r := tests.NewRunner(plan)
	c.update(func(s *Status) { s.Test = string(plan.Kind) })
	defer c.update(func(s *Status) { s.Test = "" })
	c.Diag.Emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeTestRunning, Summary: "Running panel check",
		Detail: string(plan.Kind), Evidence: map[string]any{"steps": r.Len(c.Layout)}})

	for {
		st, ok := r.Next(c.Layout)
		if !ok {
			break
		}
		c.Log.Debug().Str("test", string(plan.Kind)).Str("step", st.Label).Msg("panel check")
		var shown bool
		if st.Canvas != nil {
			shown = c.Eng.Show(ctx, st.Canvas)
		} else {
			shown = c.Disp.Push(ctx, st.Frame)
		}
		if !shown {
			c.failed(ctx)
			return
		}
		if c.Sleep(ctx, c.Display.TestStep) != nil {
			return
		}
	}
	c.last = nil
	c.Diag.Emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeTestDone, Summary: "Panel check complete", Detail: string(plan.Kind)})
}

// recover rebuilds the session. After exhausting all attempts it waits the
// configured backoff.
func (c *Conductor) recover(ctx context.Context) bool {
	res := c.Disp.Reconnect(ctx, c.Recon.Attempts, c.Recon.Delay)
	if res.OK {
		c.update(func(s *Status) {
			s.Reconnects++
			s.Exhausted = false
		})
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Info, Code: diag.CodeReconnected, Summary: "Device reconnected",
			Evidence: map[string]any{"attempts": res.Attempts}})
		return true
	}
	if res.Exhausted {
		c.update(func(s *Status) { s.Exhausted = true })
		c.Log.Error().Int("attempts", res.Attempts).Dur("backoff", c.Recon.Backoff).Msg("reconnect exhausted")
		c.Diag.Emit(diag.Diagnostic{Severity: diag.Err, Code: diag.CodeExhausted, Summary: "Could not reach the device",
			SuggestedFixes: []string{"check that the device is powered and on the network", "set device.address to its IP"},
			Evidence:       map[string]any{"attempts": res.Attempts}})
		_ = c.Sleep(ctx, c.Recon.Backoff)
	}
	return false
}
