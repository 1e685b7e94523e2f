package led

import (
	"errors"
	"fmt"
	"math"

	"github.com/coreman2200/twinkly-weather/internal/render"
)

// ErrFrameLength means the mapping and the device disagree on the LED count.
var ErrFrameLength = errors.New("frame length does not match LED count")

// Coordinate is an LED position as reported by the device: X in [-1,1]
// left to right, Y in [0,1] bottom to top.
type Coordinate struct{ X, Y float64 }

// Cell converts a coordinate to the canvas column and row it shows.
func (c Coordinate) Cell(w, h int) (col, row int) {
	col = clamp(int(math.Round((c.X+1)/2*float64(w))), 0, w-1)
	row = clamp(int(math.Round((1-c.Y)*float64(h))), 0, h-1)
	return col, row
}

// LUT[i] is the row-major canvas cell shown by LED i.
type LUT []int

// BuildLUT resolves every LED coordinate to a canvas cell once, so mapping a
// frame is a single pass over the table.
func BuildLUT(coords []Coordinate, w, h int) LUT {
	lut := make(LUT, len(coords))
	for i, c := range coords {
		col, row := c.Cell(w, h)
		lut[i] = row*w + col
	}
	return lut
}

// Mapper turns canvases into native-order frames. Without coordinates it
// falls back to row-major order.
type Mapper struct {
	W, H int
	lut  LUT
	// Post runs on every produced frame, e.g. a Limiter.
	Post func(Frame)
}

func NewMapper(w, h int, coords []Coordinate) *Mapper {
	m := &Mapper{W: w, H: h}
	if len(coords) > 0 {
		m.lut = BuildLUT(coords, w, h)
	}
	return m
}

// Raster reports whether the mapper uses the row-major fallback.
func (m *Mapper) Raster() bool { return m.lut == nil }

// LEDs is the number of LEDs a produced frame addresses.
func (m *Mapper) LEDs() int {
	if m.Raster() {
		return m.W * m.H
	}
	return len(m.lut)
}

// Check verifies the mapping against the device's LED count. The raster
// fallback is always accepted.
func (m *Mapper) Check(leds int) error {
	if m.Raster() || len(m.lut) == leds {
		return nil
	}
	return fmt.Errorf("%w: layout has %d LEDs, device reports %d", ErrFrameLength, len(m.lut), leds)
}

// Frame maps c to native LED order.
func (m *Mapper) Frame(c *render.Canvas) Frame {
	var f Frame
	if m.Raster() {
		f = make(Frame, 3*m.W*m.H)
		n := len(c.Pix)
		if n > m.W*m.H {
			n = m.W * m.H
		}
		for i := 0; i < n; i++ {
			p := c.Pix[i]
			f[3*i], f[3*i+1], f[3*i+2] = p.R, p.G, p.B
		}
	} else {
		f = make(Frame, 3*len(m.lut))
		for i, cell := range m.lut {
			p := c.Cell(cell%m.W, cell/m.W)
			f[3*i], f[3*i+1], f[3*i+2] = p.R, p.G, p.B
		}
	}
	if m.Post != nil {
		m.Post(f)
	}
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
