// Package intent persists what the operator wants on the display. The control
// surface writes it; the control loop reads a snapshot once per cycle.
package intent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	Rotate Mode = "rotate"
	Single Mode = "single"
	Clock  Mode = "clock"
)

// MinInterval is the shortest accepted rotation interval, in seconds.
const MinInterval = 5

var ErrInvalid = errors.New("invalid intent")

type Intent struct {
	Mode      Mode   `yaml:"mode" json:"mode"`
	Location  string `yaml:"location" json:"location"`
	Interval  int    `yaml:"interval" json:"interval"`
	ShowClock bool   `yaml:"show_clock" json:"show_clock"`
}

func Default() Intent {
	return Intent{Mode: Rotate, Interval: 60}
}

func (in Intent) Validate() error {
	switch in.Mode {
	case Rotate, Clock:
	case Single:
		if in.Location == "" {
			return fmt.Errorf("%w: single mode needs a location", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, in.Mode)
	}
	if in.Interval < MinInterval {
		return fmt.Errorf("%w: interval must be at least %d seconds", ErrInvalid, MinInterval)
	}
	return nil
}

// ClockEnabled reports whether the clock replaces readings.
func (in Intent) ClockEnabled() bool { return in.ShowClock || in.Mode == Clock }

func (in Intent) Period() time.Duration { return time.Duration(in.Interval) * time.Second }

// Store is a YAML-backed Intent. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store { return &Store{path: path} }

func (s *Store) Path() string { return s.path }

// Load returns the stored intent. A missing, unreadable or invalid file
// yields Default; fields absent from the file keep their default values.
func (s *Store) Load() Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() Intent {
	in := Default()
	b, err := os.ReadFile(s.path)
	if err != nil {
		return in
	}
	if err := yaml.Unmarshal(b, &in); err != nil {
		return Default()
	}
	if in.Mode == "" {
		in.Mode = Rotate
	}
	if in.Validate() != nil {
		return Default()
	}
	return in
}

// Save validates and writes in.
func (s *Store) Save(in Intent) error {
	if err := in.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(in)
}

func (s *Store) save(in Intent) error {
	b, err := yaml.Marshal(in)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Update applies fn to the current intent and saves the result if it is
// valid. The stored intent is left unchanged otherwise.
func (s *Store) Update(fn func(*Intent)) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := s.load()
	fn(&in)
	if err := in.Validate(); err != nil {
		return s.load(), err
	}
	if err := s.save(in); err != nil {
		return in, fmt.Errorf("save intent: %w", err)
	}
	return in, nil
}

// SetMode switches the display mode; single mode requires a location.
func (s *Store) SetMode(m Mode, location string) (Intent, error) {
	return s.Update(func(in *Intent) {
		in.Mode = m
		if m == Single {
			in.Location = location
		}
	})
}

func (s *Store) SetInterval(seconds int) (Intent, error) {
	return s.Update(func(in *Intent) { in.Interval = seconds })
}

func (s *Store) SetClock(on bool) (Intent, error) {
	return s.Update(func(in *Intent) { in.ShowClock = on })
}
