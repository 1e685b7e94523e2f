package provider

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticSource struct {
	name string
	rs   Readings
}

func (s staticSource) Name() string                      { return s.name }
func (s staticSource) Readings(context.Context) Readings { return s.rs }

func TestCollectKeepsSourceOrder(t *testing.T) {
	got := Collect(context.Background(), zerolog.Nop(),
		staticSource{name: "a", rs: Readings{{Key: "Stue", Value: 21}, {Key: "Ute", Value: -2}}},
		staticSource{name: "empty"},
		staticSource{name: "b", rs: Readings{{Key: "Strømpris NO2", Kind: Price, Value: 80}}},
	)
	assert.Equal(t, []string{"Stue", "Ute", "Strømpris NO2"}, got.Keys())

	r, ok := got.Lookup("Ute")
	assert.True(t, ok)
	assert.Equal(t, -2.0, r.Value)
	_, ok = got.Lookup("missing")
	assert.False(t, ok)
}

func TestCollectStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := Collect(ctx, zerolog.Nop(), staticSource{name: "a", rs: Readings{{Key: "x"}}})
	assert.Empty(t, got)
}

var TestLabels = []struct {
	label string
	want  Kind
}{
	{"Strømpris NO2", Price},
	{"STRØM", Price},
	{"Electricity", Price},
	{"Spot price", Price},
	{"Ute (Sokndal)", Temperature},
	{"Stue", Temperature},
}

func TestClassifyLabel(t *testing.T) {
	for _, tc := range TestLabels {
		assert.Equal(t, tc.want, ClassifyLabel(tc.label), tc.label)
	}
}
