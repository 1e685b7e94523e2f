package layout

import (
	"fmt"
	"image"
)

type Dim struct{ X, Y int }

// Serpentine describes how a panel's LEDs are chained.
type Serpentine struct {
	XFlipEveryRow bool
}

// Layout is a display built from identical square panels arranged in a grid.
// The canvas is Panel × Grid cells and stays constant for the process.
type Layout struct {
	Panel Dim
	Grid  Dim
	Order Serpentine
}

// Default is the Twinkly Square: 3×2 panels of 8×8 LEDs.
func Default() Layout {
	return Layout{
		Panel: Dim{X: 8, Y: 8},
		Grid:  Dim{X: 3, Y: 2},
		Order: Serpentine{XFlipEveryRow: true},
	}
}

func (l Layout) Width() int  { return l.Panel.X * l.Grid.X }
func (l Layout) Height() int { return l.Panel.Y * l.Grid.Y }
func (l Layout) Count() int  { return l.Width() * l.Height() }
func (l Layout) Panels() int { return l.Grid.X * l.Grid.Y }

func (l Layout) Validate() error {
	if l.Panel.X <= 0 || l.Panel.Y <= 0 || l.Grid.X <= 0 || l.Grid.Y <= 0 {
		return fmt.Errorf("invalid layout: panel %dx%d grid %dx%d", l.Panel.X, l.Panel.Y, l.Grid.X, l.Grid.Y)
	}
	return nil
}

// Raster maps canvas x,y -> row-major cell index.
func (l Layout) Raster(x, y int) int {
	return y*l.Width() + x
}

// PanelOf returns the row-major panel number containing canvas x,y.
func (l Layout) PanelOf(x, y int) int {
	return (y/l.Panel.Y)*l.Grid.X + x/l.Panel.X
}

// PanelBounds returns the canvas rectangle covered by panel p.
func (l Layout) PanelBounds(p int) image.Rectangle {
	px := (p % l.Grid.X) * l.Panel.X
	py := (p / l.Grid.X) * l.Panel.Y
	return image.Rect(px, py, px+l.Panel.X, py+l.Panel.Y)
}

// Index maps canvas x,y -> chained LED index (0..N-1): panels are chained
// bottom-left first, row by row, and each panel is wired from its bottom row
// upward with optional serpentine rows.
func (l Layout) Index(x, y int) int {
	// flip vertically so that the chain starts at the bottom
	fy := l.Height() - 1 - y
	panel := (fy/l.Panel.Y)*l.Grid.X + x/l.Panel.X
	lx := x % l.Panel.X
	ly := fy % l.Panel.Y
	if l.Order.XFlipEveryRow && ly%2 == 1 {
		lx = l.Panel.X - 1 - lx
	}
	perPanel := l.Panel.X * l.Panel.Y
	return panel*perPanel + ly*l.Panel.X + lx
}

// Coordinates synthesizes the per-LED normalized coordinates a device would
// report for this layout, ordered by chained index: x in [-1,1] left to right,
// y in [0,1] bottom to top, taken at each cell's top-left corner.
func (l Layout) Coordinates() [][2]float64 {
	w, h := l.Width(), l.Height()
	out := make([][2]float64, l.Count())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx := float64(x)/float64(w)*2 - 1
			cy := 1 - float64(y)/float64(h)
			out[l.Index(x, y)] = [2]float64{cx, cy}
		}
	}
	return out
}
