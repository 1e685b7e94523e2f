package scenes

import (
	"math"
	"math/rand"

	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/twinkly-weather/internal/render"
)

type particle struct {
	x, y  float64
	speed float64
	drift float64
}

// field is a set of falling particles.
type field struct {
	w, h     int
	n        int
	minSpeed float64
	maxSpeed float64
	maxDrift float64
	wrapX    bool

	rng *rand.Rand
	ps  []particle
}

func (f *field) reset(rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	f.rng = rng
	f.ps = make([]particle, f.n)
	for i := range f.ps {
		f.ps[i] = particle{
			x:     rng.Float64() * float64(f.w),
			y:     rng.Float64() * float64(f.h),
			speed: f.minSpeed + rng.Float64()*(f.maxSpeed-f.minSpeed),
			drift: (rng.Float64()*2 - 1) * f.maxDrift,
		}
	}
}

func (f *field) ready() {
	if f.ps == nil {
		f.reset(nil)
	}
}

// step advances every particle one frame. Particles past the bottom edge
// respawn at a random position above the top edge.
func (f *field) step() {
	for i := range f.ps {
		p := &f.ps[i]
		p.y += p.speed
		p.x += p.drift
		if f.wrapX {
			p.x = math.Mod(p.x, float64(f.w))
			if p.x < 0 {
				p.x += float64(f.w)
			}
		}
		if p.y >= float64(f.h) {
			p.y = -1 - f.rng.Float64()*float64(f.h)/2
			p.x = f.rng.Float64() * float64(f.w)
		}
	}
}

func (f *field) draw(c *render.Canvas, head, trail render.Color, withTrail bool) {
	for _, p := range f.ps {
		x, y := int(math.Floor(p.x)), int(math.Floor(p.y))
		if withTrail {
			c.Set(x, y-1, trail)
		}
		c.Set(x, y, head)
	}
}

// RainScene is 15 drops with short trails.
type RainScene struct{ f field }

func NewRain(w, h int) *RainScene {
	return &RainScene{f: field{w: w, h: h, n: 15, minSpeed: 0.5, maxSpeed: 1.5}}
}

var (
	rainDrop  = render.Color{R: 80, G: 120, B: 255}
	rainTrail = render.Color{R: 20, G: 40, B: 110}
)

func (r *RainScene) Name() string          { return Rain }
func (r *RainScene) FPS() physic.Frequency { return DefaultFPS }
func (r *RainScene) Reset(rng *rand.Rand)  { r.f.reset(rng) }

func (r *RainScene) Frame(int) *render.Canvas {
	r.f.ready()
	c := render.NewCanvas(r.f.w, r.f.h)
	r.f.draw(c, rainDrop, rainTrail, true)
	r.f.step()
	return c
}

// SnowScene is 20 slow flakes drifting sideways and wrapping at the edges.
type SnowScene struct{ f field }

func NewSnow(w, h int) *SnowScene {
	return &SnowScene{f: field{w: w, h: h, n: 20, minSpeed: 0.2, maxSpeed: 0.6, maxDrift: 0.2, wrapX: true}}
}

func (s *SnowScene) Name() string          { return Snow }
func (s *SnowScene) FPS() physic.Frequency { return DefaultFPS }
func (s *SnowScene) Reset(rng *rand.Rand)  { s.f.reset(rng) }

func (s *SnowScene) Frame(int) *render.Canvas {
	s.f.ready()
	c := render.NewCanvas(s.f.w, s.f.h)
	s.f.draw(c, render.White, render.Black, false)
	s.f.step()
	return c
}

// ThunderScene is heavy rain with random full-screen flashes and bolts.
type ThunderScene struct {
	f field
	// Probabilities per frame; the flash is decided first and wins.
	FlashP, BoltP float64
}

func NewThunder(w, h int) *ThunderScene {
	return &ThunderScene{
		f:      field{w: w, h: h, n: 20, minSpeed: 1.0, maxSpeed: 2.0},
		FlashP: 0.15,
		BoltP:  0.10,
	}
}

var (
	stormDrop  = render.Color{R: 60, G: 60, B: 140}
	stormTrail = render.Color{R: 20, G: 20, B: 60}
	boltColor  = render.Color{R: 255, G: 230, B: 80}
)

func (t *ThunderScene) Name() string          { return Thunder }
func (t *ThunderScene) FPS() physic.Frequency { return DefaultFPS }
func (t *ThunderScene) Reset(rng *rand.Rand)  { t.f.reset(rng) }

func (t *ThunderScene) Frame(int) *render.Canvas {
	t.f.ready()
	c := render.NewCanvas(t.f.w, t.f.h)
	flash := t.f.rng.Float64() < t.FlashP
	bolt := t.f.rng.Float64() < t.BoltP
	if flash {
		c.Fill(render.White)
		t.f.step()
		return c
	}
	t.f.draw(c, stormDrop, stormTrail, true)
	if bolt {
		t.drawBolt(c)
	}
	t.f.step()
	return c
}

func (t *ThunderScene) drawBolt(c *render.Canvas) {
	x := t.f.rng.Intn(t.f.w)
	for y := 0; y < t.f.h*2/3; y++ {
		c.Set(x, y, boltColor)
		x += t.f.rng.Intn(3) - 1
	}
}
