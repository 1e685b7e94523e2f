package scenes

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/twinkly-weather/internal/render"
)

func frames(a render.Animation, seed int64, n int) []*render.Canvas {
	a.Reset(rand.New(rand.NewSource(seed)))
	out := make([]*render.Canvas, n)
	for i := range out {
		out[i] = a.Frame(i)
	}
	return out
}

func TestSeededScenesAreDeterministic(t *testing.T) {
	reg := render.NewRegistry()
	Register(reg)
	for _, name := range []string{Rain, Snow, Thunder} {
		a, ok := reg.New(name, 24, 16)
		require.True(t, ok, name)
		b, _ := reg.New(name, 24, 16)
		fa := frames(a, 42, 30)
		fb := frames(b, 42, 30)
		for i := range fa {
			assert.True(t, fa[i].Equal(fb[i]), "%s frame %d", name, i)
		}
	}
}

func TestResetRestartsParticles(t *testing.T) {
	r := NewRain(24, 16)
	first := frames(r, 7, 5)
	again := frames(r, 7, 5)
	for i := range first {
		assert.True(t, first[i].Equal(again[i]))
	}
}

func TestFrameRates(t *testing.T) {
	reg := render.NewRegistry()
	Register(reg)
	assert.Equal(t, []string{Alert, Fog, Rain, Snow, Sun, Thunder}, reg.List())
	for _, name := range reg.List() {
		a, _ := reg.New(name, 24, 16)
		want := 100 * time.Millisecond
		if name == Alert {
			want = 250 * time.Millisecond
		}
		assert.Equal(t, want, a.FPS().Period(), name)
	}
}

func TestSunRadiusAndRays(t *testing.T) {
	s := NewSun(24, 16)
	assert.InDelta(t, 2.4, s.Radius(0), 1e-9)
	for i := 0; i < 40; i++ {
		r := s.Radius(i)
		assert.True(t, r >= 1.8-1e-9 && r <= 3.0+1e-9)
	}
	rays := func(c *render.Canvas) int {
		n := 0
		for _, p := range c.Pix {
			if p == sunRay {
				n++
			}
		}
		return n
	}
	c := s.Frame(0)
	assert.Equal(t, sunCore, c.Cell(12, 8))
	assert.Greater(t, rays(c), 0)
	assert.Equal(t, 0, rays(s.Frame(3)))
	assert.Equal(t, 0, rays(s.Frame(4)))
	assert.Greater(t, rays(s.Frame(5)), 0)
}

func TestFogRange(t *testing.T) {
	f := NewFog(24, 16)
	for i := 0; i < 20; i++ {
		c := f.Frame(i)
		for _, p := range c.Pix {
			assert.True(t, p.R >= 100 && p.R <= 200)
			assert.Equal(t, p.R, p.G)
			assert.Equal(t, p.R, p.B)
		}
	}
}

func TestSnowWrapsHorizontally(t *testing.T) {
	s := NewSnow(24, 16)
	s.Reset(rand.New(rand.NewSource(3)))
	for i := 0; i < 500; i++ {
		s.Frame(i)
		for _, p := range s.f.ps {
			assert.True(t, p.x >= 0 && p.x < 24)
			assert.True(t, p.speed >= 0.2 && p.speed <= 0.6)
			assert.True(t, p.drift >= -0.2 && p.drift <= 0.2)
		}
	}
}

func TestThunderFlashWins(t *testing.T) {
	th := NewThunder(24, 16)
	th.FlashP, th.BoltP = 1, 1
	th.Reset(rand.New(rand.NewSource(1)))
	c := th.Frame(0)
	for _, p := range c.Pix {
		assert.Equal(t, render.White, p)
	}
}

func TestAlertBlinks(t *testing.T) {
	a := NewAlert(24, 16)
	on := a.Frame(0)
	off := a.Frame(1)
	assert.Equal(t, 0, off.Lit())
	assert.Equal(t, on.W*on.H, on.Lit())
	assert.Equal(t, alertFill, on.Cell(0, 0))

	assert.True(t, ShouldAlert(150, 150))
	assert.False(t, ShouldAlert(149.99, 150))
}

var TestSymbols = []struct {
	code string
	want string
}{
	{"clearsky_day", Sun},
	{"fair_night", Sun},
	{"lightrainshowers_day", Rain},
	{"heavyrain", Rain},
	{"rainandthunder", Thunder},
	{"lightssleetshowersandthunder_day", Thunder},
	{"snow", Snow},
	{"sleet", Snow},
	{"fog", Fog},
	{"cloudy", ""},
	{"", ""},
}

func TestForSymbol(t *testing.T) {
	for _, tc := range TestSymbols {
		assert.Equal(t, tc.want, ForSymbol(tc.code), tc.code)
	}
}

func TestFallingParticlesRespawnAboveTop(t *testing.T) {
	for _, f := range []*field{&NewRain(24, 16).f, &NewThunder(24, 16).f} {
		f.reset(rand.New(rand.NewSource(5)))
		xs := map[float64]bool{}
		for i := 0; i < 20; i++ {
			p := &f.ps[0]
			p.x, p.y = 3, 15.9
			f.step()
			assert.LessOrEqual(t, p.y, -1.0)
			assert.Greater(t, p.y, -1-8.0)
			assert.GreaterOrEqual(t, p.x, 0.0)
			assert.Less(t, p.x, 24.0)
			xs[p.x] = true
		}
		assert.Greater(t, len(xs), 1, "respawn x must be drawn anew")
	}
}

func TestSolidFillsCanvas(t *testing.T) {
	s := NewSolid(24, 16, render.Color{G: 80})
	c := s.Frame(0)
	assert.Equal(t, 24*16, c.Lit())
	assert.Equal(t, render.Color{G: 80}, c.Cell(23, 15))
	assert.Equal(t, "solid", s.Name())
}
