// Package scenes holds the procedural weather animations. Every scene draws
// on a fresh canvas per frame; particle scenes keep their particles in the
// scene value and rebuild them on Reset.
package scenes

import (
	"math"
	"math/rand"
	"strings"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/twinkly-weather/internal/render"
)

const (
	Sun     = "sun"
	Rain    = "rain"
	Snow    = "snow"
	Thunder = "thunder"
	Fog     = "fog"
	Alert   = "alert"
)

// DefaultFPS is the frame rate of all weather scenes except Alert.
const DefaultFPS = 10 * physic.Hertz

// Register adds every weather scene to reg.
func Register(reg *render.Registry) {
	reg.Register(Sun, func(w, h int) render.Animation { return NewSun(w, h) })
	reg.Register(Rain, func(w, h int) render.Animation { return NewRain(w, h) })
	reg.Register(Snow, func(w, h int) render.Animation { return NewSnow(w, h) })
	reg.Register(Thunder, func(w, h int) render.Animation { return NewThunder(w, h) })
	reg.Register(Fog, func(w, h int) render.Animation { return NewFog(w, h) })
	reg.Register(Alert, func(w, h int) render.Animation { return NewAlert(w, h) })
}

// ForSymbol maps a forecast symbol code such as "lightrainshowers_day" to
// a scene name. Conditions without an animation map to "".
func ForSymbol(code string) string {
	c := strings.ToLower(code)
	if i := strings.IndexByte(c, '_'); i >= 0 {
		c = c[:i]
	}
	switch {
	case c == "":
		return ""
	case strings.Contains(c, "thunder"):
		return Thunder
	case strings.Contains(c, "snow"), strings.Contains(c, "sleet"):
		return Snow
	case strings.Contains(c, "rain"):
		return Rain
	case c == "fog":
		return Fog
	case c == "clearsky", c == "fair":
		return Sun
	}
	return ""
}

// ShouldAlert reports whether a price is high enough for the alert scene.
func ShouldAlert(price, threshold float64) bool {
	return price >= threshold
}

// SunScene is a pulsing disc with rays blinking on a 5-frame cycle.
type SunScene struct{ w, h int }

func NewSun(w, h int) *SunScene { return &SunScene{w: w, h: h} }

func (s *SunScene) Name() string          { return Sun }
func (s *SunScene) FPS() physic.Frequency { return DefaultFPS }
func (s *SunScene) Reset(*rand.Rand)      {}

var (
	sunCore = render.Color{R: 255, G: 220, B: 0}
	sunRay  = render.Color{R: 255, G: 140, B: 0}
)

// Radius is the disc radius at frame i.
func (s *SunScene) Radius(i int) float64 {
	return 3 * (0.8 + 0.2*math.Sin(float64(i)*0.5))
}

func (s *SunScene) Frame(i int) *render.Canvas {
	c := render.NewCanvas(s.w, s.h)
	cx, cy := float64(s.w)/2, float64(s.h)/2
	r := s.Radius(i)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy <= r*r {
				c.Set(x, y, sunCore)
			}
		}
	}
	if i%5 < 3 {
		for k := 0; k < 8; k++ {
			a := float64(k) * math.Pi / 4
			ux, uy := math.Cos(a), math.Sin(a)
			for d := r + 1.5; d <= r+3; d++ {
				c.Set(int(math.Floor(cx+ux*d)), int(math.Floor(cy+uy*d)), sunRay)
			}
		}
	}
	return c
}

// FogScene is a drifting grey field; frames depend only on the index.
type FogScene struct{ w, h int }

func NewFog(w, h int) *FogScene { return &FogScene{w: w, h: h} }

func (f *FogScene) Name() string          { return Fog }
func (f *FogScene) FPS() physic.Frequency { return DefaultFPS }
func (f *FogScene) Reset(*rand.Rand)      {}

// Intensity is the grey level of cell x,y at frame i, in [100,200].
func (f *FogScene) Intensity(x, y, i int) uint8 {
	fi := float64(i)
	a := (math.Sin((float64(x)+fi*0.3)*0.5) + 1) / 2
	b := (math.Sin((float64(y)+fi*0.2)*0.7) + 1) / 2
	return uint8(100 + 100*(a+b)/2)
}

func (f *FogScene) Frame(i int) *render.Canvas {
	c := render.NewCanvas(f.w, f.h)
	for y := 0; y < f.h; y++ {
		for x := 0; x < f.w; x++ {
			v := f.Intensity(x, y, i)
			c.Set(x, y, render.Color{R: v, G: v, B: v})
		}
	}
	return c
}

// AlertFPS is the blink rate of the price alert.
const AlertFPS = 4 * physic.Hertz

var (
	alertFill = render.Color{R: 255}
	alertBolt = render.Color{R: 255, G: 230, B: 0}
	boltShape = []string{
		"....###",
		"...###.",
		"..###..",
		".######",
		"....##.",
		"...##..",
		"..##...",
		".##....",
		"##.....",
	}
)

// AlertScene blinks a full-screen warning with a lightning bolt.
type AlertScene struct{ w, h int }

func NewAlert(w, h int) *AlertScene { return &AlertScene{w: w, h: h} }

func (a *AlertScene) Name() string          { return Alert }
func (a *AlertScene) FPS() physic.Frequency { return AlertFPS }
func (a *AlertScene) Reset(*rand.Rand)      {}

func (a *AlertScene) Frame(i int) *render.Canvas {
	c := render.NewCanvas(a.w, a.h)
	if i%2 != 0 {
		return c
	}
	c.Fill(alertFill)
	x0 := (a.w - len(boltShape[0])) / 2
	y0 := (a.h - len(boltShape)) / 2
	for y, row := range boltShape {
		for x := 0; x < len(row); x++ {
			if row[x] == '#' {
				c.Set(x0+x, y0+y, alertBolt)
			}
		}
	}
	return c
}

// SolidScene fills the canvas with one colour.
type SolidScene struct {
	w, h int
	C    render.Color
}

func NewSolid(w, h int, col render.Color) *SolidScene { return &SolidScene{w: w, h: h, C: col} }

func (s *SolidScene) Name() string          { return "solid" }
func (s *SolidScene) FPS() physic.Frequency { return physic.Hertz }
func (s *SolidScene) Reset(*rand.Rand)      {}

func (s *SolidScene) Frame(int) *render.Canvas {
	c := render.NewCanvas(s.w, s.h)
	c.Fill(s.C)
	return c
}
