// Package elspot reads the current Norwegian spot electricity price from
// hvakosterstrommen.no.
package elspot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/provider"
)

const DefaultBaseURL = "https://www.hvakosterstrommen.no/api/v1/prices"

// Oslo is the zone the day files are published in. Falls back to CET when
// the zone database cannot be read.
var Oslo = loadOslo()

func loadOslo() *time.Location {
	loc, err := time.LoadLocation("Europe/Oslo")
	if err != nil {
		return time.FixedZone("CET", 3600)
	}
	return loc
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// Location picks the day file and hour. Defaults to Oslo.
	Location *time.Location
}

type Client struct {
	// Region is the price area, NO1..NO5.
	Region string
	Label  string

	base string
	hc   *http.Client
	log  zerolog.Logger
	now  func() time.Time
	loc  *time.Location
}

func New(region, label string, opts Options) *Client {
	c := &Client{
		Region: region,
		Label:  label,
		base:   opts.BaseURL,
		hc:     opts.HTTPClient,
		log:    opts.Logger,
		now:    opts.Now,
		loc:    opts.Location,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 10 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.loc == nil {
		c.loc = Oslo
	}
	if c.Label == "" {
		c.Label = "Strømpris " + region
	}
	return c
}

// Price is one hourly entry.
type Price struct {
	NOKPerKWh float64   `json:"NOK_per_kWh"`
	EURPerKWh float64   `json:"EUR_per_kWh"`
	EXR       float64   `json:"EXR"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

// URL returns the day file for the calendar date of t, e.g.
// .../2024/01-10_NO2.json.
func (c *Client) URL(t time.Time) string {
	return fmt.Sprintf("%s/%s_%s.json", c.base, t.Format("2006/01-02"), c.Region)
}

// Today fetches every entry of the current Oslo day.
func (c *Client) Today(ctx context.Context) ([]Price, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(c.now().In(c.loc)), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elspot: status %d", resp.StatusCode)
	}
	var out []Price
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("elspot: decode: %w", err)
	}
	return out, nil
}

// Current returns the price in øre/kWh, rounded to two decimals, for the
// entry covering now. Entries without an end match on the Oslo start hour.
func (c *Client) Current(ctx context.Context) (float64, bool, error) {
	prices, err := c.Today(ctx)
	if err != nil {
		return 0, false, err
	}
	now := c.now()
	for _, p := range prices {
		if p.covers(now, c.loc) {
			return Ore(p.NOKPerKWh), true, nil
		}
	}
	return 0, false, nil
}

func (p Price) covers(t time.Time, loc *time.Location) bool {
	if p.TimeEnd.IsZero() {
		return p.TimeStart.In(loc).Hour() == t.In(loc).Hour()
	}
	return !t.Before(p.TimeStart) && t.Before(p.TimeEnd)
}

// Ore converts NOK/kWh to øre/kWh with two decimals.
func Ore(nok float64) float64 {
	return math.Round(nok*100*100) / 100
}

func (c *Client) Name() string { return "elspot" }

// Readings implements provider.Source.
func (c *Client) Readings(ctx context.Context) provider.Readings {
	v, ok, err := c.Current(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("region", c.Region).Msg("price fetch failed")
		return nil
	}
	if !ok {
		return nil
	}
	return provider.Readings{{Key: c.Label, Kind: provider.Price, Value: v}}
}
