// Package twinkly is a client for the Twinkly local "xled" API: HTTP for
// authentication and device control, UDP for realtime frames and discovery.
package twinkly

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	RealtimePort = 7777
	codeOK       = 1000
)

// ErrCode is returned when the device answers with a code other than 1000.
var ErrCode = errors.New("twinkly: unexpected response code")

// ErrUnauthorized is returned when the device rejects the session token.
var ErrUnauthorized = errors.New("twinkly: unauthorized")

// Mode is a device LED mode.
type Mode string

const (
	ModeRealtime Mode = "rt"
	ModeOff      Mode = "off"
	ModeMovie    Mode = "movie"
	ModeDemo     Mode = "demo"
)

// Modes lists the modes SetMode accepts.
var Modes = []Mode{ModeRealtime, ModeOff, ModeMovie, ModeDemo}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("twinkly: unknown mode %q", s)
}

// Gestalt is the device capability document.
type Gestalt struct {
	ProductName  string `json:"product_name"`
	DeviceName   string `json:"device_name"`
	FwFamily     string `json:"fw_family"`
	HardwareID   string `json:"hw_id"`
	MAC          string `json:"mac"`
	NumberOfLED  *int   `json:"number_of_led"`
	LEDProfile   string `json:"led_profile"`
	BytesPerLED  int    `json:"bytes_per_led"`
	MaxSupported int    `json:"max_supported_led"`
}

// LEDs returns the reported LED count, or def when the field is absent.
func (g *Gestalt) LEDs(def int) int {
	if g == nil || g.NumberOfLED == nil || *g.NumberOfLED <= 0 {
		return def
	}
	return *g.NumberOfLED
}

// Coordinate is one LED position: X in [-1,1], Y in [0,1].
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Layout is the LED coordinate list, ordered by native LED index.
type Layout struct {
	Source      string       `json:"source"`
	Synthesized bool         `json:"synthesized"`
	Coordinates []Coordinate `json:"coordinates"`
}

type Options struct {
	// HTTPClient defaults to a client with a 5s timeout.
	HTTPClient *http.Client
	// RealtimeAddr overrides host:7777 as the realtime frame destination.
	RealtimeAddr string
	Logger       zerolog.Logger
}

// Client is an authenticated connection to one device.
type Client struct {
	base   string
	rtAddr string
	hc     *http.Client
	log    zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenRaw []byte
	udp      net.Conn
}

// Dial authenticates against the device at addr ("ip" or "host:port").
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	rt := opts.RealtimeAddr
	if rt == "" {
		rt = net.JoinHostPort(host, fmt.Sprint(RealtimePort))
	}
	c := &Client{
		base:   "http://" + addr,
		rtAddr: rt,
		hc:     hc,
		log:    opts.Logger.With().Str("device", addr).Logger(),
	}
	if err := c.login(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

type loginResponse struct {
	Token             string `json:"authentication_token"`
	ExpiresIn         int    `json:"authentication_token_expires_in"`
	ChallengeResponse string `json:"challenge-response"`
}

func (c *Client) login(ctx context.Context) error {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return err
	}
	var lr loginResponse
	in := map[string]string{"challenge": base64.StdEncoding.EncodeToString(challenge)}
	if err := c.call(ctx, http.MethodPost, "/xled/v1/login", "", in, &lr); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(lr.Token)
	if err != nil {
		return fmt.Errorf("login: bad token: %w", err)
	}
	verify := map[string]string{"challenge-response": lr.ChallengeResponse}
	if err := c.call(ctx, http.MethodPost, "/xled/v1/verify", lr.Token, verify, nil); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	c.mu.Lock()
	c.token, c.tokenRaw = lr.Token, raw
	c.mu.Unlock()
	c.log.Debug().Int("expires_in", lr.ExpiresIn).Msg("logged in")
	return nil
}

// do runs an authenticated call, logging in again once if the token expired.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	c.mu.Lock()
	tok := c.token
	c.mu.Unlock()
	err := c.call(ctx, method, path, tok, in, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	if err := c.login(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	tok = c.token
	c.mu.Unlock()
	return c.call(ctx, method, path, tok, in, out)
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var env struct {
		Code *int `json:"code"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if env.Code != nil && *env.Code != codeOK {
		return fmt.Errorf("%w %d from %s", ErrCode, *env.Code, path)
	}
	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
	}
	return nil
}

func (c *Client) Gestalt(ctx context.Context) (*Gestalt, error) {
	var g Gestalt
	if err := c.do(ctx, http.MethodGet, "/xled/v1/gestalt", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) Layout(ctx context.Context) (*Layout, error) {
	var l Layout
	if err := c.do(ctx, http.MethodGet, "/xled/v1/led/layout/full", nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) SetMode(ctx context.Context, m Mode) error {
	return c.do(ctx, http.MethodPost, "/xled/v1/led/mode", map[string]string{"mode": string(m)}, nil)
}

// Close releases the realtime socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.udp == nil {
		return nil
	}
	err := c.udp.Close()
	c.udp = nil
	return err
}
