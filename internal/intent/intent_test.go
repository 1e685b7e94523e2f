package intent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	s := NewStore(filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, Intent{Mode: Rotate, Interval: 60}, s.Load())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mode: [\n"), 0o644))
	assert.Equal(t, Default(), NewStore(bad).Load())

	short := filepath.Join(dir, "short.yaml")
	require.NoError(t, os.WriteFile(short, []byte("interval: 2\n"), 0o644))
	assert.Equal(t, Default(), NewStore(short).Load())

	partial := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(partial, []byte("show_clock: true\n"), 0o644))
	got := NewStore(partial).Load()
	assert.True(t, got.ShowClock)
	assert.Equal(t, 60, got.Interval)
	assert.Equal(t, Rotate, got.Mode)
}

func TestSaveAndReload(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state", "intent.yaml"))
	in := Intent{Mode: Single, Location: "Stue", Interval: 15}
	require.NoError(t, s.Save(in))
	assert.Equal(t, in, s.Load())
	assert.Equal(t, 15*time.Second, s.Load().Period())
}

func TestSetters(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "intent.yaml"))

	_, err := s.SetInterval(4)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 60, s.Load().Interval)

	in, err := s.SetInterval(5)
	require.NoError(t, err)
	assert.Equal(t, 5, in.Interval)

	_, err = s.SetMode(Single, "")
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, Rotate, s.Load().Mode)

	in, err = s.SetMode(Single, "Ute")
	require.NoError(t, err)
	assert.Equal(t, "Ute", in.Location)

	in, err = s.SetClock(true)
	require.NoError(t, err)
	assert.True(t, in.ClockEnabled())
	assert.Equal(t, Single, s.Load().Mode)
	assert.Equal(t, 5, s.Load().Interval)

	_, err = s.SetMode("party", "")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestClockMode(t *testing.T) {
	assert.True(t, Intent{Mode: Clock, Interval: 60}.ClockEnabled())
	assert.False(t, Default().ClockEnabled())
}
