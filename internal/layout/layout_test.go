package layout

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDimensions(t *testing.T) {
	l := Default()
	assert.NoError(t, l.Validate())
	assert.Equal(t, 24, l.Width())
	assert.Equal(t, 16, l.Height())
	assert.Equal(t, 384, l.Count())
	assert.Equal(t, 6, l.Panels())
}

func TestValidateRejectsEmpty(t *testing.T) {
	assert.Error(t, Layout{Panel: Dim{8, 8}}.Validate())
}

func TestIndexIsAPermutation(t *testing.T) {
	l := Default()
	seen := make(map[int]bool, l.Count())
	for y := 0; y < l.Height(); y++ {
		for x := 0; x < l.Width(); x++ {
			i := l.Index(x, y)
			assert.False(t, seen[i], "duplicate index %d", i)
			assert.True(t, i >= 0 && i < l.Count())
			seen[i] = true
		}
	}
	assert.Len(t, seen, l.Count())
}

func TestIndexStartsBottomLeft(t *testing.T) {
	l := Default()
	assert.Equal(t, 0, l.Index(0, 15))
	assert.Equal(t, 7, l.Index(7, 15))
	// second row of the first panel runs backwards
	assert.Equal(t, 8, l.Index(7, 14))
	// second panel to the right
	assert.Equal(t, 64, l.Index(8, 15))
}

func TestPanels(t *testing.T) {
	l := Default()
	assert.Equal(t, 0, l.PanelOf(0, 0))
	assert.Equal(t, 2, l.PanelOf(23, 0))
	assert.Equal(t, 5, l.PanelOf(23, 15))
	assert.Equal(t, image.Rect(8, 8, 16, 16), l.PanelBounds(4))
}

func TestCoordinatesRange(t *testing.T) {
	l := Default()
	c := l.Coordinates()
	assert.Len(t, c, l.Count())
	assert.Equal(t, [2]float64{-1, 1}, c[l.Index(0, 0)])
	for _, p := range c {
		assert.True(t, p[0] >= -1 && p[0] <= 1)
		assert.True(t, p[1] >= 0 && p[1] <= 1)
	}
}
