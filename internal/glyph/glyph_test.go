package glyph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var TestWidth = []struct {
	in   string
	want int
}{
	{"21.5°", 6 + 5 + 3 + 6 + 6},
	{"134.0", 6 + 6 + 5 + 3 + 6},
	{"-3°", 18},
	{"0", 6},
	{".", 3},
	{"", 0},
	{"1x2", 12},
}

func TestWidthMatchesAdvances(t *testing.T) {
	for _, tc := range TestWidth {
		assert.Equal(t, tc.want, Width(tc.in), tc.in)
	}
}

func TestLayoutUsesSameRuleAsWidth(t *testing.T) {
	for _, tc := range TestWidth {
		p := Layout(tc.in, 0)
		if len(p) == 0 {
			continue
		}
		last := p[len(p)-1]
		text := []rune(tc.in)
		// position of the last known glyph plus its own advance is the total width
		lastAdv := 0
		for i := len(text) - 1; i >= 0; i-- {
			if text[i] == last.Rune {
				lastAdv = AdvanceAt(text, i)
				break
			}
		}
		assert.Equal(t, Width(tc.in), last.X+lastAdv, tc.in)
	}
}

func TestUnknownCharactersAreSkipped(t *testing.T) {
	p := Layout("1a2", 4)
	require.Len(t, p, 2)
	assert.Equal(t, 4, p[0].X)
	assert.Equal(t, 10, p[1].X)
	_, ok := For('a')
	assert.False(t, ok)
}

func TestGlyphShapes(t *testing.T) {
	dot, ok := For('.')
	require.True(t, ok)
	assert.True(t, dot.Lit(5, 1))
	assert.True(t, dot.Lit(6, 1))
	assert.False(t, dot.Lit(4, 1))

	minus, _ := For('-')
	for c := 0; c < Cols; c++ {
		assert.True(t, minus.Lit(3, c))
	}
	assert.False(t, minus.Lit(-1, 0))
	assert.False(t, minus.Lit(0, Cols))
}
