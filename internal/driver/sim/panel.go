package sim

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3/display"
)

// Panel is a 2D display.Drawer that paints into a terminal with ANSI colour
// blocks, one block per LED. Each refresh redraws in place.
type Panel struct {
	w       io.Writer
	width   int
	height  int
	palette ansi256.Palette

	pixels []color.NRGBA
	drawn  bool
	buf    bytes.Buffer
}

// NewPanel returns a w×h panel writing to out, or to a colour-capable
// stdout when out is nil.
func NewPanel(out io.Writer, w, h int) *Panel {
	if out == nil {
		out = colorable.NewColorableStdout()
	}
	return &Panel{
		w:       out,
		width:   w,
		height:  h,
		palette: *ansi256.Default,
		pixels:  make([]color.NRGBA, w*h),
	}
}

func (p *Panel) String() string { return "SimPanel" }

func (p *Panel) ColorModel() color.Model { return color.NRGBAModel }

func (p *Panel) Bounds() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

// Draw implements display.Drawer.
func (p *Panel) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	r = r.Intersect(p.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.NRGBAModel.Convert(src.At(sp.X+x-r.Min.X, sp.Y+y-r.Min.Y)).(color.NRGBA)
			c.A = 255
			p.pixels[y*p.width+x] = c
		}
	}
	return p.refresh()
}

// Halt resets the terminal colours.
func (p *Panel) Halt() error {
	_, err := io.WriteString(p.w, "\033[0m\n")
	return err
}

func (p *Panel) refresh() error {
	p.buf.Reset()
	if p.drawn {
		// back to the first row of the previous drawing
		fmt.Fprintf(&p.buf, "\033[%dF", p.height)
	}
	for y := 0; y < p.height; y++ {
		p.buf.WriteString("\033[0m")
		for x := 0; x < p.width; x++ {
			p.buf.WriteString(p.palette.Block(p.pixels[y*p.width+x]))
		}
		p.buf.WriteString("\033[0m\n")
	}
	p.drawn = true
	_, err := p.buf.WriteTo(p.w)
	return err
}

var _ display.Drawer = &Panel{}
