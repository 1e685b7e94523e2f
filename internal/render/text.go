package render

import (
	"fmt"
	"strconv"

	"github.com/coreman2200/twinkly-weather/internal/glyph"
	"github.com/coreman2200/twinkly-weather/internal/icon"
	"github.com/coreman2200/twinkly-weather/internal/provider"
)

// IconTint is the colour of lit background icon cells.
var IconTint = Color{R: 20, G: 20, B: 40}

// Style controls RenderValue.
type Style struct {
	Kind     provider.Kind
	Decimals int
	Icon     icon.Bitmap
}

// Renderer lays out values and clock times on a fixed W×H canvas.
type Renderer struct {
	W, H int
	// Columns added to the centred start so the text sits optically centred.
	Bias int
}

func NewRenderer(w, h int) *Renderer {
	return &Renderer{W: w, H: h, Bias: 1}
}

// Band is the colour for value v of kind k.
func Band(v float64, k provider.Kind) Color {
	if k == provider.Price {
		switch {
		case v < 50:
			return Color{0, 255, 0}
		case v < 100:
			return Color{255, 200, 0}
		default:
			return Color{255, 0, 0}
		}
	}
	switch {
	case v < 0:
		return Color{0, 100, 255}
	case v < 10:
		return Color{0, 200, 255}
	case v < 20:
		return Color{255, 200, 0}
	default:
		return Color{255, 50, 0}
	}
}

// FormatValue renders v with a fixed number of decimals, suffixed with a
// degree sign unless k is a price.
func FormatValue(v float64, k provider.Kind, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(v, 'f', decimals, 64)
	if k != provider.Price {
		s += "°"
	}
	return s
}

// RenderValue draws the formatted value centred on the canvas over the
// style's background icon.
func (r *Renderer) RenderValue(v float64, s Style) *Canvas {
	c := NewCanvas(r.W, r.H)
	for y := 0; y < r.H; y++ {
		for x := 0; x < r.W; x++ {
			if s.Icon.Lit(x, y) {
				c.Set(x, y, IconTint)
			}
		}
	}
	text := FormatValue(v, s.Kind, s.Decimals)
	x0 := floorDiv(r.W-glyph.Width(text), 2) + r.Bias
	r.paint(c, glyph.Layout(text, x0), r.top(), func(int) Color { return Band(v, s.Kind) })
	return c
}

// Clock palettes: four digit colours and the colon colour per time bucket.
type clockPalette struct {
	digits [4]Color
	colon  Color
}

var clockPalettes = [4]clockPalette{
	// night 0-6
	{digits: [4]Color{{20, 40, 150}, {80, 20, 120}, {20, 100, 150}, {100, 40, 150}}, colon: Color{150, 40, 150}},
	// morning 6-12
	{digits: [4]Color{{50, 150, 255}, {100, 200, 200}, {200, 220, 100}, {255, 200, 50}}, colon: Color{255, 100, 150}},
	// afternoon 12-18
	{digits: [4]Color{{255, 200, 0}, {255, 150, 0}, {255, 100, 50}, {255, 200, 100}}, colon: Color{0, 200, 255}},
	// evening 18-24
	{digits: [4]Color{{255, 100, 0}, {200, 50, 100}, {150, 100, 200}, {100, 150, 255}}, colon: Color{150, 255, 100}},
}

const (
	clockLeft         = 2
	clockDigitAdvance = glyph.Cols
	clockColonAdvance = 1
)

// RenderClock draws HH:MM left-anchored with colours chosen by time of day.
// The output depends only on hour and minute.
func (r *Renderer) RenderClock(hour, minute int) *Canvas {
	hour = ((hour % 24) + 24) % 24
	minute = ((minute % 60) + 60) % 60
	pal := clockPalettes[hour/6]

	c := NewCanvas(r.W, r.H)
	top := r.top()
	text := []rune(fmt.Sprintf("%02d:%02d", hour, minute))
	x := clockLeft
	digit := 0
	for _, ch := range text {
		g, _ := glyph.For(ch)
		if ch == ':' {
			r.paint(c, []glyph.Placement{{Rune: ch, Glyph: g, X: x}}, top, func(int) Color { return pal.colon })
			x += clockColonAdvance
			continue
		}
		col := pal.digits[digit]
		r.paint(c, []glyph.Placement{{Rune: ch, Glyph: g, X: x}}, top, func(int) Color { return col })
		digit++
		x += clockDigitAdvance
	}
	return c
}

// IconSource resolves a background icon for a display label.
type IconSource interface {
	For(label string) icon.Bitmap
}

// RenderReading draws a reading with one decimal over its label's icon.
func (r *Renderer) RenderReading(rd provider.Reading, icons IconSource) *Canvas {
	var bm icon.Bitmap
	if icons != nil {
		bm = icons.For(rd.Key)
	}
	return r.RenderValue(rd.Value, Style{Kind: rd.Kind, Decimals: 1, Icon: bm})
}

func (r *Renderer) top() int { return floorDiv(r.H-glyph.Rows, 2) }

func (r *Renderer) paint(c *Canvas, ps []glyph.Placement, top int, color func(i int) Color) {
	for i, p := range ps {
		col := color(i)
		for gy := 0; gy < glyph.Rows; gy++ {
			for gx := 0; gx < glyph.Cols; gx++ {
				if p.Glyph.Lit(gy, gx) {
					c.Set(p.X+gx, top+gy, col)
				}
			}
		}
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
