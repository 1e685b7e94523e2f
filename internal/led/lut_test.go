package led

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/render"
)

func TestCornerCoordinates(t *testing.T) {
	col, row := Coordinate{X: -1, Y: 1}.Cell(24, 16)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, row)

	col, row = Coordinate{X: 1, Y: 0}.Cell(24, 16)
	assert.Equal(t, 23, col)
	assert.Equal(t, 15, row)

	// out-of-range values clamp
	col, row = Coordinate{X: 3, Y: -2}.Cell(24, 16)
	assert.Equal(t, 23, col)
	assert.Equal(t, 15, row)
}

func TestRasterRoundTrip(t *testing.T) {
	cells := make([][]uint8, 16)
	for y := range cells {
		cells[y] = make([]uint8, 24)
		for x := range cells[y] {
			cells[y][x] = uint8((x*7 + y*3) % 2)
		}
	}
	c := render.Binary(cells)
	m := NewMapper(24, 16, nil)
	require.True(t, m.Raster())
	f := m.Frame(c)
	require.Len(t, f, 3*24*16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			i := 3 * (y*24 + x)
			want := byte(0)
			if cells[y][x] == 1 {
				want = 255
			}
			assert.Equal(t, []byte{want, want, want}, []byte(f[i:i+3]))
		}
	}
}

func TestRasterPadsSmallCanvas(t *testing.T) {
	c := render.NewCanvas(2, 1)
	c.Fill(render.White)
	f := NewMapper(24, 16, nil).Frame(c)
	assert.Len(t, f, 3*24*16)
	assert.Equal(t, byte(255), f[5])
	assert.Equal(t, byte(0), f[6])
}

func TestLUTFollowsDeviceOrder(t *testing.T) {
	l := layout.Default()
	var coords []Coordinate
	for _, p := range l.Coordinates() {
		coords = append(coords, Coordinate{X: p[0], Y: p[1]})
	}
	m := NewMapper(l.Width(), l.Height(), coords)
	require.False(t, m.Raster())
	require.NoError(t, m.Check(l.Count()))

	c := render.NewCanvas(24, 16)
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			c.Set(x, y, render.Color{R: uint8(x), G: uint8(y), B: 1})
		}
	}
	f := m.Frame(c)
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			i := l.Index(x, y)
			assert.Equal(t, []byte{uint8(x), uint8(y), 1}, []byte(f[3*i:3*i+3]), "cell %d,%d", x, y)
		}
	}
}

func TestCheckRejectsMismatch(t *testing.T) {
	m := NewMapper(24, 16, []Coordinate{{0, 0}, {1, 1}})
	assert.ErrorIs(t, m.Check(384), ErrFrameLength)
	assert.NoError(t, NewMapper(24, 16, nil).Check(100))
}

func TestPostStageRuns(t *testing.T) {
	m := NewMapper(1, 1, nil)
	m.Post = Limiter{WhiteCap: 0.5}.Apply
	c := render.NewCanvas(1, 1)
	c.Fill(render.White)
	f := m.Frame(c)
	assert.LessOrEqual(t, int(f[0])+int(f[1])+int(f[2]), 383)
}
