package render

import (
	"image"
	"image/color"
	"math/rand"
	"sort"

	"periph.io/x/conn/v3/physic"
)

// Color is an 8-bit RGB triple. It implements color.Color.
type Color struct{ R, G, B uint8 }

var (
	Black = Color{}
	White = Color{R: 255, G: 255, B: 255}
)

func (c Color) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255}.RGBA()
}

// IsBlack reports whether all channels are zero.
func (c Color) IsBlack() bool { return c == Black }

// Canvas is a W×H grid of colours, row-major. A fresh canvas is produced
// for every render call; it implements image.Image so display.Drawer
// implementations can draw it directly.
type Canvas struct {
	W, H int
	Pix  []Color
}

func NewCanvas(w, h int) *Canvas {
	return &Canvas{W: w, H: h, Pix: make([]Color, w*h)}
}

// Binary builds a canvas from 0/1 cells: non-zero is white, zero is black.
func Binary(cells [][]uint8) *Canvas {
	h := len(cells)
	w := 0
	if h > 0 {
		w = len(cells[0])
	}
	c := NewCanvas(w, h)
	for y, row := range cells {
		for x, v := range row {
			if v != 0 {
				c.Set(x, y, White)
			}
		}
	}
	return c
}

func (c *Canvas) In(x, y int) bool { return x >= 0 && x < c.W && y >= 0 && y < c.H }

// Cell returns the colour at x,y, black when outside the canvas.
func (c *Canvas) Cell(x, y int) Color {
	if !c.In(x, y) {
		return Black
	}
	return c.Pix[y*c.W+x]
}

// Set paints x,y; writes outside the canvas are dropped.
func (c *Canvas) Set(x, y int, col Color) {
	if !c.In(x, y) {
		return
	}
	c.Pix[y*c.W+x] = col
}

func (c *Canvas) Fill(col Color) {
	for i := range c.Pix {
		c.Pix[i] = col
	}
}

func (c *Canvas) Equal(o *Canvas) bool {
	if c.W != o.W || c.H != o.H {
		return false
	}
	for i := range c.Pix {
		if c.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Lit counts non-black cells.
func (c *Canvas) Lit() int {
	n := 0
	for _, p := range c.Pix {
		if !p.IsBlack() {
			n++
		}
	}
	return n
}

func (c *Canvas) ColorModel() color.Model { return color.NRGBAModel }
func (c *Canvas) Bounds() image.Rectangle { return image.Rect(0, 0, c.W, c.H) }
func (c *Canvas) At(x, y int) color.Color { return c.Cell(x, y) }

// Animation is a procedural scene producing one canvas per frame index.
// Frames must be requested in order starting at 0 after Reset; particle
// state carried between frames lives in the scene value.
type Animation interface {
	Name() string
	FPS() physic.Frequency
	Reset(rng *rand.Rand)
	Frame(i int) *Canvas
}

// Factory builds a scene for a canvas of w×h.
type Factory func(w, h int) Animation

// Registry maps scene names to scene constructors.
type Registry struct{ m map[string]Factory }

func NewRegistry() *Registry { return &Registry{m: map[string]Factory{}} }

func (r *Registry) Register(name string, f Factory) {
	if f == nil {
		return
	}
	r.m[name] = f
}

// New builds the scene registered under name.
func (r *Registry) New(name string, w, h int) (Animation, bool) {
	f, ok := r.m[name]
	if !ok {
		return nil, false
	}
	return f(w, h), true
}

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
