// Package yr reads the current outdoor temperature and weather symbol from
// the MET Norway locationforecast API.
package yr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/provider"
)

const (
	DefaultBaseURL   = "https://api.met.no/weatherapi/locationforecast/2.0/compact"
	DefaultUserAgent = "twinkly-weather/1.0 (private home display)"
)

type Options struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

type Client struct {
	Lat, Lon float64
	// Label is the reading key, e.g. "Ute".
	Label string

	base string
	ua   string
	hc   *http.Client
	log  zerolog.Logger
}

func New(lat, lon float64, label string, opts Options) *Client {
	c := &Client{
		Lat:   lat,
		Lon:   lon,
		Label: label,
		base:  opts.BaseURL,
		ua:    opts.UserAgent,
		hc:    opts.HTTPClient,
		log:   opts.Logger,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.ua == "" {
		c.ua = DefaultUserAgent
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 10 * time.Second}
	}
	return c
}

// Current is the first timeseries entry.
type Current struct {
	Temperature float64
	Symbol      string
}

type forecast struct {
	Properties struct {
		Timeseries []struct {
			Data struct {
				Instant struct {
					Details struct {
						AirTemperature *float64 `json:"air_temperature"`
					} `json:"details"`
				} `json:"instant"`
				Next1Hours struct {
					Summary struct {
						SymbolCode string `json:"symbol_code"`
					} `json:"summary"`
				} `json:"next_1_hours"`
			} `json:"data"`
		} `json:"timeseries"`
	} `json:"properties"`
}

// Current fetches the forecast and returns its first entry. ok is false when
// the response carries no temperature.
func (c *Client) Current(ctx context.Context) (Current, bool, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+q.Encode(), nil)
	if err != nil {
		return Current{}, false, err
	}
	req.Header.Set("User-Agent", c.ua)
	resp, err := c.hc.Do(req)
	if err != nil {
		return Current{}, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Current{}, false, fmt.Errorf("yr: status %d", resp.StatusCode)
	}
	var f forecast
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return Current{}, false, fmt.Errorf("yr: decode: %w", err)
	}
	ts := f.Properties.Timeseries
	if len(ts) == 0 || ts[0].Data.Instant.Details.AirTemperature == nil {
		return Current{}, false, nil
	}
	return Current{
		Temperature: *ts[0].Data.Instant.Details.AirTemperature,
		Symbol:      ts[0].Data.Next1Hours.Summary.SymbolCode,
	}, true, nil
}

func (c *Client) Name() string { return "yr" }

// Readings implements provider.Source.
func (c *Client) Readings(ctx context.Context) provider.Readings {
	cur, ok, err := c.Current(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("yr fetch failed")
		return nil
	}
	if !ok {
		return nil
	}
	return provider.Readings{{
		Key:    c.Label,
		Kind:   provider.Temperature,
		Value:  cur.Temperature,
		Symbol: cur.Symbol,
	}}
}
