// Package tests drives the wiring checks: patterns that reveal how the
// physical panels and LEDs are ordered.
package tests

import (
	"fmt"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/led"
	"github.com/coreman2200/twinkly-weather/internal/render"
	"github.com/coreman2200/twinkly-weather/internal/render/scenes/calib"
)

type Kind string

const (
	None Kind = ""
	// PanelSweep marks the centre of one panel at a time with a small cross.
	PanelSweep Kind = "panel_sweep"
	// PanelID shows the calibration pattern on all panels at once.
	PanelID Kind = "panel_id"
	// IndexSweep lights one native LED index at a time, bypassing the mapper.
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
)

var Kinds = []Kind{PanelSweep, PanelID, IndexSweep, RGBTest}

func Parse(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("unknown test %q", s)
}

type Plan struct {
	Kind Kind
	// LEDs is the native LED count, used by IndexSweep.
	LEDs int
	// Stride skips LEDs in IndexSweep; 0 or 1 visits every LED.
	Stride int
}

// Step is one pattern to show: either a canvas, which goes through the
// mapper, or a native-order frame, which does not.
type Step struct {
	Label  string
	Canvas *render.Canvas
	Frame  led.Frame
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }
func (r *Runner) Kind() Kind      { return r.plan.Kind }

// Len is the total number of steps for layout l.
func (r *Runner) Len(l layout.Layout) int {
	switch r.plan.Kind {
	case PanelSweep:
		return l.Panels()
	case PanelID:
		return 1
	case IndexSweep:
		stride := max(1, r.plan.Stride)
		return (r.leds(l) + stride - 1) / stride
	case RGBTest:
		return 3
	}
	return 0
}

func (r *Runner) leds(l layout.Layout) int {
	if r.plan.LEDs > 0 {
		return r.plan.LEDs
	}
	return l.Count()
}

// Next returns the following step; false when the run is complete.
func (r *Runner) Next(l layout.Layout) (Step, bool) {
	if r.step >= r.Len(l) {
		return Step{}, false
	}
	i := r.step
	r.step++
	w, h := l.Width(), l.Height()

	switch r.plan.Kind {
	case PanelSweep:
		c := render.NewCanvas(w, h)
		b := l.PanelBounds(i)
		cx, cy := b.Min.X+l.Panel.X/2, b.Min.Y+l.Panel.Y/2
		for _, d := range [][2]int{{0, 0}, {-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			c.Set(cx+d[0], cy+d[1], render.White)
		}
		return Step{Label: fmt.Sprintf("panel %d at x=%d y=%d", i+1, cx, cy), Canvas: c}, true
	case PanelID:
		return Step{Label: "panel orientation", Canvas: calib.New(l).Frame(0)}, true
	case IndexSweep:
		idx := i * max(1, r.plan.Stride)
		f := led.Black(r.leds(l))
		f[3*idx], f[3*idx+1], f[3*idx+2] = 255, 255, 255
		return Step{Label: fmt.Sprintf("led %d", idx), Frame: f}, true
	case RGBTest:
		c := render.NewCanvas(w, h)
		col := [...]render.Color{{R: 255}, {G: 255}, {B: 255}}[i]
		c.Fill(col)
		return Step{Label: [...]string{"red", "green", "blue"}[i], Canvas: c}, true
	}
	return Step{}, false
}
