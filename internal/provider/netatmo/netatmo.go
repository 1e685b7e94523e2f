// Package netatmo reads indoor and outdoor temperatures from a Netatmo
// weather station.
package netatmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/twinkly-weather/internal/provider"
)

const (
	DefaultAuthURL    = "https://api.netatmo.com/oauth2/token"
	DefaultStationURL = "https://api.netatmo.com/api/getstationsdata"

	// tokens are refreshed this long before they actually expire
	expiryMargin = 300 * time.Second
)

var ErrNoCredentials = errors.New("netatmo: no refresh token or password configured")

type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Username     string
	Password     string
}

type Options struct {
	AuthURL    string
	StationURL string
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Now        func() time.Time
}

type Client struct {
	creds Credentials
	auth  string
	data  string
	hc    *http.Client
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	access  string
	expires time.Time
}

func New(creds Credentials, opts Options) *Client {
	c := &Client{
		creds: creds,
		auth:  opts.AuthURL,
		data:  opts.StationURL,
		hc:    opts.HTTPClient,
		log:   opts.Logger,
		now:   opts.Now,
	}
	if c.auth == "" {
		c.auth = DefaultAuthURL
	}
	if c.data == "" {
		c.data = DefaultStationURL
	}
	if c.hc == nil {
		c.hc = &http.Client{Timeout: 10 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken returns the latest refresh token; Netatmo rotates it on
// every grant.
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds.RefreshToken
}

func (c *Client) grant(ctx context.Context) error {
	form := url.Values{}
	form.Set("client_id", c.creds.ClientID)
	form.Set("client_secret", c.creds.ClientSecret)
	switch {
	case c.creds.RefreshToken != "":
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", c.creds.RefreshToken)
	case c.creds.Username != "" && c.creds.Password != "":
		form.Set("grant_type", "password")
		form.Set("username", c.creds.Username)
		form.Set("password", c.creds.Password)
		form.Set("scope", "read_station")
	default:
		return ErrNoCredentials
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.auth, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("netatmo: token grant: status %d", resp.StatusCode)
	}
	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("netatmo: token grant: %w", err)
	}
	c.access = tr.AccessToken
	if tr.RefreshToken != "" {
		c.creds.RefreshToken = tr.RefreshToken
	}
	c.expires = c.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)
	return nil
}

func (c *Client) ensureToken(ctx context.Context) error {
	if c.access != "" && c.now().Before(c.expires) {
		return nil
	}
	return c.grant(ctx)
}

// Module is the part of a station or module record used here.
type Module struct {
	ID            string `json:"_id"`
	ModuleName    string `json:"module_name"`
	StationName   string `json:"station_name"`
	DashboardData struct {
		Temperature *float64 `json:"Temperature"`
	} `json:"dashboard_data"`
}

type stationsData struct {
	Body struct {
		Devices []struct {
			Module
			Modules []Module `json:"modules"`
		} `json:"devices"`
	} `json:"body"`
}

func (c *Client) fetch(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.data, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.access)
	return c.hc.Do(req)
}

// Temperature is one module's current reading.
type Temperature struct {
	Name  string
	Value float64
}

// Temperatures returns the first station's main module followed by its
// modules, in device order. Modules without a temperature are skipped.
func (c *Client) Temperatures(ctx context.Context) ([]Temperature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}
	resp, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		c.log.Debug().Msg("netatmo token rejected; refreshing")
		if err := c.grant(ctx); err != nil {
			return nil, err
		}
		if resp, err = c.fetch(ctx); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("netatmo: stations data: status %d", resp.StatusCode)
	}
	var sd stationsData
	if err := json.NewDecoder(resp.Body).Decode(&sd); err != nil {
		return nil, fmt.Errorf("netatmo: decode: %w", err)
	}
	if len(sd.Body.Devices) == 0 {
		return nil, nil
	}
	dev := sd.Body.Devices[0]
	var out []Temperature
	if t := dev.DashboardData.Temperature; t != nil {
		out = append(out, Temperature{Name: firstNonEmpty(dev.ModuleName, dev.StationName, "Main"), Value: *t})
	}
	for _, m := range dev.Modules {
		if t := m.DashboardData.Temperature; t != nil {
			out = append(out, Temperature{Name: firstNonEmpty(m.ModuleName, "Module "+m.ID), Value: *t})
		}
	}
	return out, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) Name() string { return "netatmo" }

// Readings implements provider.Source.
func (c *Client) Readings(ctx context.Context) provider.Readings {
	ts, err := c.Temperatures(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("netatmo fetch failed")
		return nil
	}
	out := make(provider.Readings, 0, len(ts))
	for _, t := range ts {
		out = append(out, provider.Reading{Key: t.Name, Kind: provider.Temperature, Value: t.Value})
	}
	return out
}
