package calib

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coreman2200/twinkly-weather/internal/layout"
)

func TestPanelChannels(t *testing.T) {
	s := New(layout.Default())
	s.P.Intensity = 1
	c := s.Frame(0)
	assert.Equal(t, 24, c.W)
	assert.Equal(t, 16, c.H)

	// bottom-left cell of each of the first three panels is its pure channel
	red := c.Cell(0, 7)
	green := c.Cell(8, 7)
	blue := c.Cell(16, 7)
	assert.Equal(t, uint8(255), red.R)
	assert.Zero(t, red.G)
	assert.Equal(t, uint8(255), green.G)
	assert.Zero(t, green.B)
	assert.Equal(t, uint8(255), blue.B)
	assert.Zero(t, blue.R)

	// the top row of every panel is white
	top := c.Cell(3, 0)
	assert.Equal(t, uint8(255), top.R)
	assert.Equal(t, uint8(255), top.G)
	assert.Equal(t, uint8(255), top.B)

	// right edge is darker than left edge
	assert.Less(t, c.Cell(7, 7).R, c.Cell(0, 7).R)
}

func TestFactoryMatchesCanvas(t *testing.T) {
	a := Factory(layout.Dim{X: 8, Y: 8})(24, 16)
	assert.Equal(t, Name, a.Name())
	c := a.Frame(0)
	assert.Equal(t, 24, c.W)
	assert.Equal(t, 16, c.H)
}
