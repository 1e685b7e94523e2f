package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/twinkly-weather/internal/layout"
	"github.com/coreman2200/twinkly-weather/internal/led"
)

type Dim struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

type Canvas struct {
	Panel         Dim  `yaml:"panel"` // LEDs per panel, e.g. 8x8
	Grid          Dim  `yaml:"grid"`  // panels across and down, e.g. 3x2
	XFlipEveryRow bool `yaml:"x_flip_every_row"`
}

type Reconnect struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	// Backoff is the wait after all attempts failed, before trying again.
	Backoff time.Duration `yaml:"backoff"`
}

type Device struct {
	Driver           string        `yaml:"driver"` // "twinkly" | "sim"
	Address          string        `yaml:"address"`
	DefaultLEDs      int           `yaml:"default_leds"`
	KeepAlive        time.Duration `yaml:"keepalive"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
	Reconnect        Reconnect     `yaml:"reconnect"`
}

type Display struct {
	AlertThreshold float64       `yaml:"alert_threshold"` // øre/kWh
	Animate        bool          `yaml:"animate"`
	AnimationTime  time.Duration `yaml:"animation_time"`
	AlertTime      time.Duration `yaml:"alert_time"`
	CrossfadeSteps int           `yaml:"crossfade_steps"`
	IconsPath      string        `yaml:"icons_path"`
	TestStep       time.Duration `yaml:"test_step"` // per panel check step
}

type Yr struct {
	Enabled bool    `yaml:"enabled"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
	Label   string  `yaml:"label"`
}

type Elspot struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Label   string `yaml:"label,omitempty"`
}

type Netatmo struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Username     string `yaml:"username,omitempty"`
	Password     string `yaml:"password,omitempty"`
}

type Providers struct {
	Netatmo Netatmo `yaml:"netatmo"`
	Yr      Yr      `yaml:"yr"`
	Elspot  Elspot  `yaml:"elspot"`
}

type PowerCfg struct {
	Brightness float64 `yaml:"brightness"`
	WhiteCap   float64 `yaml:"white_cap"`
	BudgetMA   float64 `yaml:"budget_ma"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Debug struct {
	StrictMapping bool `yaml:"strict_mapping"`
}

type Config struct {
	Device    Device    `yaml:"device"`
	Canvas    Canvas    `yaml:"canvas"`
	Display   Display   `yaml:"display"`
	Providers Providers `yaml:"providers"`
	Power     PowerCfg  `yaml:"power"`
	Server    Server    `yaml:"server"`
	StatePath string    `yaml:"state_path"`
	Debug     Debug     `yaml:"debug"`
}

func Default() *Config {
	return &Config{
		Device: Device{
			Driver:           "twinkly",
			DefaultLEDs:      384,
			KeepAlive:        30 * time.Second,
			DiscoveryTimeout: 3 * time.Second,
			Reconnect: Reconnect{
				Attempts: 5,
				Delay:    2 * time.Second,
				Backoff:  30 * time.Second,
			},
		},
		Canvas: Canvas{
			Panel:         Dim{X: 8, Y: 8},
			Grid:          Dim{X: 3, Y: 2},
			XFlipEveryRow: true,
		},
		Display: Display{
			AlertThreshold: 100,
			Animate:        true,
			AnimationTime:  5 * time.Second,
			AlertTime:      3 * time.Second,
			CrossfadeSteps: 0,
			IconsPath:      "icons.yaml",
			TestStep:       time.Second,
		},
		Providers: Providers{
			Yr:     Yr{Enabled: true, Lat: 58.0, Lon: 6.5, Label: "Ute (Yr)"},
			Elspot: Elspot{Enabled: true, Region: "NO2"},
		},
		Power:     PowerCfg{Brightness: 1},
		Server:    Server{Addr: ":8080"},
		StatePath: "display_state.yaml",
	}
}

// Load reads path over Default. Fields missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// ApplyEnv overrides secrets and the device address from the environment.
// Netatmo is enabled when a client id arrives this way.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	set := func(dst *string, key string) bool {
		if v := getenv(key); v != "" {
			*dst = v
			return true
		}
		return false
	}
	set(&c.Device.Address, "TWINKLY_IP")
	n := &c.Providers.Netatmo
	if set(&n.ClientID, "NETATMO_CLIENT_ID") {
		n.Enabled = true
	}
	set(&n.ClientSecret, "NETATMO_CLIENT_SECRET")
	set(&n.RefreshToken, "NETATMO_REFRESH_TOKEN")
	set(&n.Username, "NETATMO_USERNAME")
	set(&n.Password, "NETATMO_PASSWORD")
}

func (c *Config) Layout() layout.Layout {
	return layout.Layout{
		Panel: layout.Dim{X: c.Canvas.Panel.X, Y: c.Canvas.Panel.Y},
		Grid:  layout.Dim{X: c.Canvas.Grid.X, Y: c.Canvas.Grid.Y},
		Order: layout.Serpentine{XFlipEveryRow: c.Canvas.XFlipEveryRow},
	}
}

// Limiter is the post stage for mapped frames.
func (c *Config) Limiter() led.Limiter {
	return led.Limiter{
		Brightness: c.Power.Brightness,
		WhiteCap:   c.Power.WhiteCap,
		BudgetMA:   c.Power.BudgetMA,
	}
}

func (c *Config) Validate() error {
	if err := c.Layout().Validate(); err != nil {
		return err
	}
	switch c.Device.Driver {
	case "twinkly", "sim":
	default:
		return fmt.Errorf("config: unknown device driver %q", c.Device.Driver)
	}
	if c.Device.Reconnect.Attempts < 1 {
		return fmt.Errorf("config: reconnect attempts must be at least 1")
	}
	if c.Power.Brightness < 0 || c.Power.Brightness > 1 {
		return fmt.Errorf("config: brightness %v outside 0..1", c.Power.Brightness)
	}
	return nil
}
