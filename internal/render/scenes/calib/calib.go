// Package calib draws a static orientation pattern: each panel gets one
// primary channel, fading dark toward its right edge and white toward its
// top row, so a misplaced or rotated panel is obvious at a glance.
package calib

import (
	"math"
	"math/rand"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/render"
)

const Name = "calib"

type Params struct {
	LRGamma     float64 // left→right darkening curve (>1 steeper right edge)
	TopWhitePow float64 // bottom→top blend curve (<1 quicker toward white)
	TopWhiteMix float64 // 0..1 how hard to pull toward white below the top row
	RightFloor  float64 // minimum brightness at the right edge
	Intensity   float64
}

func DefaultParams() Params {
	return Params{LRGamma: 1.4, TopWhitePow: 2.0, TopWhiteMix: 0.6, RightFloor: 0.1, Intensity: 0.5}
}

type Scene struct {
	l layout.Layout
	P Params
}

func New(l layout.Layout) *Scene { return &Scene{l: l, P: DefaultParams()} }

// Factory adapts the scene to render.Registry for a given panel tile.
func Factory(panel layout.Dim) render.Factory {
	return func(w, h int) render.Animation {
		l := layout.Layout{Panel: panel, Grid: layout.Dim{X: w / panel.X, Y: h / panel.Y}}
		return New(l)
	}
}

func (s *Scene) Name() string          { return Name }
func (s *Scene) FPS() physic.Frequency { return physic.Hertz }
func (s *Scene) Reset(*rand.Rand)      {}

func norm(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(i) / float64(n-1)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *Scene) Frame(int) *render.Canvas {
	c := render.NewCanvas(s.l.Width(), s.l.Height())
	p := s.P
	px, py := s.l.Panel.X, s.l.Panel.Y
	for y := 0; y < c.H; y++ {
		for x := 0; x < c.W; x++ {
			var base [3]float64
			base[s.l.PanelOf(x, y)%3] = 1

			lr := 1 - math.Pow(norm(x%px, px), p.LRGamma)
			lr = p.RightFloor + (1-p.RightFloor)*lr

			// row 0 of a panel is its top
			up := py - 1 - y%py
			bt := math.Pow(norm(up, py), p.TopWhitePow)
			if up == py-1 {
				bt = 1
			} else {
				bt *= clamp01(p.TopWhiteMix)
			}

			var out [3]uint8
			for ch := range base {
				v := base[ch] * lr
				v = v + (1-v)*bt
				out[ch] = uint8(math.Round(clamp01(v*p.Intensity) * 255))
			}
			c.Set(x, y, render.Color{R: out[0], G: out[1], B: out[2]})
		}
	}
	return c
}
