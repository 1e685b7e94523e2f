// Package glyph holds the fixed 5×7 bitmap font used on the LED panel.
package glyph

import "fmt"

const (
	Rows = 7
	Cols = 5

	// Advance after a regular glyph: 5 columns plus one gap column.
	Advance = Cols + 1
	// Advance of a glyph that is immediately followed by a decimal point.
	AdvanceBeforeDot = Cols
	// Advance of the decimal point itself.
	AdvanceDot = 3
)

// Glyph is a 7×5 bitmap, one string per row, '#' for a lit cell.
type Glyph [Rows]string

// Lit reports whether the cell at row, col is lit.
func (g Glyph) Lit(row, col int) bool {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return false
	}
	return g[row][col] == '#'
}

var font = map[rune]Glyph{
	'0': {
		".###.",
		"#...#",
		"#...#",
		"#...#",
		"#...#",
		"#...#",
		".###.",
	},
	'1': {
		"..#..",
		".##..",
		"#.#..",
		"..#..",
		"..#..",
		"..#..",
		"#####",
	},
	'2': {
		".###.",
		"#...#",
		"....#",
		"..##.",
		".#...",
		"#....",
		"#####",
	},
	'3': {
		".###.",
		"#...#",
		"....#",
		"..##.",
		"....#",
		"#...#",
		".###.",
	},
	'4': {
		"...#.",
		"..##.",
		".#.#.",
		"#..#.",
		"#####",
		"...#.",
		"...#.",
	},
	'5': {
		"#####",
		"#....",
		"#....",
		"####.",
		"....#",
		"#...#",
		".###.",
	},
	'6': {
		".###.",
		"#....",
		"#....",
		"####.",
		"#...#",
		"#...#",
		".###.",
	},
	'7': {
		"#####",
		"....#",
		"...#.",
		"..#..",
		".#...",
		".#...",
		".#...",
	},
	'8': {
		".###.",
		"#...#",
		"#...#",
		".###.",
		"#...#",
		"#...#",
		".###.",
	},
	'9': {
		".###.",
		"#...#",
		"#...#",
		".####",
		"....#",
		"....#",
		".###.",
	},
	'-': {
		".....",
		".....",
		".....",
		"#####",
		".....",
		".....",
		".....",
	},
	'.': {
		".....",
		".....",
		".....",
		".....",
		".....",
		".#...",
		".#...",
	},
	'°': {
		".##..",
		"#..#.",
		"#..#.",
		".##..",
		".....",
		".....",
		".....",
	},
	// The clock colon occupies a single column.
	':': {
		".....",
		".....",
		"#....",
		".....",
		"#....",
		".....",
		".....",
	},
}

func init() {
	for r, g := range font {
		for i, row := range g {
			if len(row) != Cols {
				panic(fmt.Sprintf("glyph %q row %d has %d columns", r, i, len(row)))
			}
		}
	}
}

// For returns the glyph for r. Characters outside the set report false.
func For(r rune) (Glyph, bool) {
	g, ok := font[r]
	return g, ok
}

// AdvanceAt returns the horizontal advance of text[i], looking one
// character ahead for a decimal point. Unknown characters advance 0.
func AdvanceAt(text []rune, i int) int {
	if i < 0 || i >= len(text) {
		return 0
	}
	if _, ok := font[text[i]]; !ok {
		return 0
	}
	if text[i] == '.' {
		return AdvanceDot
	}
	if i+1 < len(text) && text[i+1] == '.' {
		return AdvanceBeforeDot
	}
	return Advance
}

// Width is the total advance of s. Layout uses the same rule, so a string
// measured here is placed with exactly this width.
func Width(s string) int {
	text := []rune(s)
	w := 0
	for i := range text {
		w += AdvanceAt(text, i)
	}
	return w
}

// Placement is one glyph positioned at a column offset.
type Placement struct {
	Rune  rune
	Glyph Glyph
	X     int
}

// Layout positions each known character of s starting at column x0.
// Unknown characters are skipped.
func Layout(s string, x0 int) []Placement {
	text := []rune(s)
	out := make([]Placement, 0, len(text))
	x := x0
	for i, r := range text {
		g, ok := font[r]
		if !ok {
			continue
		}
		out = append(out, Placement{Rune: r, Glyph: g, X: x})
		x += AdvanceAt(text, i)
	}
	return out
}
