package render

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"
)

// countingAnim fills frame i with R=i.
type countingAnim struct {
	resets int
}

func (a *countingAnim) Name() string          { return "count" }
func (a *countingAnim) FPS() physic.Frequency { return 10 * physic.Hertz }
func (a *countingAnim) Reset(*rand.Rand)      { a.resets++ }
func (a *countingAnim) Frame(i int) *Canvas {
	c := NewCanvas(1, 1)
	c.Fill(Color{R: uint8(i)})
	return c
}

// fakeSink captures shown canvases and fails after failAfter frames.
type fakeSink struct {
	shown     []*Canvas
	failAfter int
}

func (s *fakeSink) Show(_ context.Context, c *Canvas) bool {
	if s.failAfter > 0 && len(s.shown) >= s.failAfter {
		return false
	}
	s.shown = append(s.shown, c)
	return true
}

type sleepLog struct{ d []time.Duration }

func (l *sleepLog) sleep(_ context.Context, d time.Duration) error {
	l.d = append(l.d, d)
	return nil
}

func TestMixAlpha(t *testing.T) {
	a := NewCanvas(2, 1)
	b := NewCanvas(2, 1)
	dst := NewCanvas(2, 1)
	a.Fill(Color{R: 255})
	b.Fill(Color{B: 255})
	Mix(dst, a, b, 0.5)
	assert.Equal(t, Color{R: 128, B: 128}, dst.Cell(0, 0))
	Mix(dst, a, b, 1)
	assert.Equal(t, Color{B: 255}, dst.Cell(1, 0))
}

func TestPlayShowsEveryFrameAtRate(t *testing.T) {
	sink := &fakeSink{}
	sl := &sleepLog{}
	e := NewEngine(sink)
	e.Sleep = sl.sleep
	var observed int
	e.Observe(func(*Canvas) { observed++ })

	a := &countingAnim{}
	require.NoError(t, e.PlayFor(context.Background(), a, time.Second))
	assert.Equal(t, 1, a.resets)
	require.Len(t, sink.shown, 10)
	for i, c := range sink.shown {
		assert.Equal(t, uint8(i), c.Cell(0, 0).R)
	}
	assert.Equal(t, 10, observed)
	assert.Len(t, sl.d, 10)
	assert.Equal(t, 100*time.Millisecond, sl.d[0])
	assert.Equal(t, uint64(10), e.Last.Shown)
}

func TestPlayStopsOnFailure(t *testing.T) {
	sink := &fakeSink{failAfter: 3}
	e := NewEngine(sink)
	e.Sleep = (&sleepLog{}).sleep
	err := e.Play(context.Background(), &countingAnim{}, 10)
	assert.ErrorIs(t, err, ErrShow)
	assert.Len(t, sink.shown, 3)
	assert.Equal(t, uint64(1), e.Last.Failed)
}

func TestPlayStopsOnCancel(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink)
	ctx, cancel := context.WithCancel(context.Background())
	e.Sleep = func(context.Context, time.Duration) error {
		cancel()
		return nil
	}
	err := e.Play(ctx, &countingAnim{}, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, sink.shown, 1)
}

func TestFadeEndsOnTarget(t *testing.T) {
	sink := &fakeSink{}
	e := NewEngine(sink)
	e.Sleep = (&sleepLog{}).sleep
	from := NewCanvas(1, 1)
	to := NewCanvas(1, 1)
	to.Fill(White)
	require.NoError(t, e.Fade(context.Background(), from, to, 4, time.Second))
	require.Len(t, sink.shown, 4)
	assert.Same(t, to, sink.shown[3])
	assert.Equal(t, uint8(64), sink.shown[0].Cell(0, 0).R)

	// no previous canvas shows the target directly
	sink.shown = nil
	require.NoError(t, e.Fade(context.Background(), nil, to, 4, time.Second))
	assert.Len(t, sink.shown, 1)
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
