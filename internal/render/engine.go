package render

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// ErrShow is returned by playback when a frame did not reach the device.
var ErrShow = errors.New("frame not shown")

// Sink receives finished canvases. Show reports false when the frame did
// not reach the device; it never returns an error.
type Sink interface {
	Show(ctx context.Context, c *Canvas) bool
}

// Engine hands canvases to a Sink, plays animations frame by frame and
// notifies observers (e.g. a preview stream) of every canvas shown.
type Engine struct {
	Sink Sink

	// Sleep waits between frames; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// Rand feeds Animation.Reset. Nil seeds from the clock.
	Rand *rand.Rand

	observers []func(*Canvas)

	// metrics
	Last struct {
		Shown  uint64
		Failed uint64
		ShowMS float64
	}
}

func NewEngine(sink Sink) *Engine {
	return &Engine{Sink: sink, Sleep: SleepContext}
}

// Observe registers fn to receive every canvas passed to Show.
// Register observers before the engine starts running.
func (e *Engine) Observe(fn func(*Canvas)) {
	if fn != nil {
		e.observers = append(e.observers, fn)
	}
}

// Show pushes one canvas.
func (e *Engine) Show(ctx context.Context, c *Canvas) bool {
	start := time.Now()
	for _, fn := range e.observers {
		fn(c)
	}
	ok := true
	if e.Sink != nil {
		ok = e.Sink.Show(ctx, c)
	}
	e.Last.ShowMS = float64(time.Since(start).Microseconds()) / 1000.0
	if ok {
		e.Last.Shown++
	} else {
		e.Last.Failed++
	}
	return ok
}

// Play resets a and shows frames 0..n-1 at the animation's frame rate.
// Cancellation is checked between frames; a failed frame stops playback
// with ErrShow.
func (e *Engine) Play(ctx context.Context, a Animation, n int) error {
	rng := e.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	a.Reset(rng)
	period := a.FPS().Period()
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !e.Show(ctx, a.Frame(i)) {
			return ErrShow
		}
		if err := e.sleep(ctx, period); err != nil {
			return err
		}
	}
	return nil
}

// PlayFor plays a for roughly d, at least one frame.
func (e *Engine) PlayFor(ctx context.Context, a Animation, d time.Duration) error {
	return e.Play(ctx, a, Frames(a, d))
}

// Frames is the number of frames of a that fit in d, at least one.
func Frames(a Animation, d time.Duration) int {
	p := a.FPS().Period()
	if p <= 0 {
		return 1
	}
	n := int(d / p)
	if n < 1 {
		n = 1
	}
	return n
}

// Fade crossfades from → to over steps frames spread across d. The final
// frame shown is exactly to.
func (e *Engine) Fade(ctx context.Context, from, to *Canvas, steps int, d time.Duration) error {
	if from == nil || steps <= 1 || from.W != to.W || from.H != to.H {
		if !e.Show(ctx, to) {
			return ErrShow
		}
		return nil
	}
	step := d / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := to
		if i < steps {
			c = NewCanvas(to.W, to.H)
			Mix(c, from, to, float64(i)/float64(steps))
		}
		if !e.Show(ctx, c) {
			return ErrShow
		}
		if i < steps {
			if err := e.sleep(ctx, step); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return e.Sleep(ctx, d)
}

// SleepContext waits d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
