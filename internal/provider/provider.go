// Package provider gathers display readings from the external data sources.
// A source that has nothing to report is simply left out; the caller never
// sees why.
package provider

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// Kind selects how a value is formatted and coloured.
type Kind int

const (
	Temperature Kind = iota
	Price
)

func (k Kind) String() string {
	switch k {
	case Price:
		return "price"
	default:
		return "temperature"
	}
}

// Reading is one displayable value. Key is the display label, Symbol an
// optional weather condition code attached by forecast sources.
type Reading struct {
	Key    string  `json:"key"`
	Kind   Kind    `json:"kind"`
	Value  float64 `json:"value"`
	Symbol string  `json:"symbol,omitempty"`
}

// Readings keeps source order; rotation walks it front to back.
type Readings []Reading

func (rs Readings) Lookup(key string) (Reading, bool) {
	for _, r := range rs {
		if r.Key == key {
			return r, true
		}
	}
	return Reading{}, false
}

func (rs Readings) Keys() []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Key
	}
	return out
}

// Source produces zero or more readings.
type Source interface {
	Name() string
	Readings(ctx context.Context) Readings
}

// Collect queries every source in order and concatenates what they return.
func Collect(ctx context.Context, logger zerolog.Logger, sources ...Source) Readings {
	var out Readings
	for _, s := range sources {
		if ctx.Err() != nil {
			break
		}
		rs := s.Readings(ctx)
		if len(rs) == 0 {
			logger.Debug().Str("source", s.Name()).Msg("no readings")
			continue
		}
		out = append(out, rs...)
	}
	return out
}

var priceKeywords = []string{"strøm", "electricity", "price"}

// ClassifyLabel guesses the kind of an untagged label.
func ClassifyLabel(label string) Kind {
	l := strings.ToLower(label)
	for _, k := range priceKeywords {
		if strings.Contains(l, k) {
			return Price
		}
	}
	return Temperature
}
