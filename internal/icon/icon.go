// Package icon stores the background icons painted behind displayed values.
// Icons live in a YAML file; each icon is a full-canvas 0/1 bitmap written
// as rows of '.' and '#'.
package icon

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Bitmap is a full-canvas 0/1 grid, indexed [row][col].
type Bitmap [][]uint8

// Blank returns an all-zero bitmap of w×h.
func Blank(w, h int) Bitmap {
	b := make(Bitmap, h)
	for y := range b {
		b[y] = make([]uint8, w)
	}
	return b
}

func (b Bitmap) Lit(x, y int) bool {
	if y < 0 || y >= len(b) || x < 0 || x >= len(b[y]) {
		return false
	}
	return b[y][x] != 0
}

// Entry is one named icon and the label keywords that select it.
type Entry struct {
	Name  string   `yaml:"name" json:"name"`
	Match []string `yaml:"match" json:"match"`
	Rows  []string `yaml:"rows" json:"rows"`
}

type file struct {
	Icons []Entry `yaml:"icons"`
}

var ErrInvalid = errors.New("invalid icon")

// Set is an ordered list of icons for one canvas size. Safe for concurrent use.
type Set struct {
	W, H int

	mu      sync.RWMutex
	entries []Entry
	bitmaps map[string]Bitmap
}

func NewSet(w, h int) *Set {
	return &Set{W: w, H: h, bitmaps: map[string]Bitmap{}}
}

// Load reads path. A missing file yields an empty set.
func Load(path string, w, h int) (*Set, error) {
	s := NewSet(w, h)
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.Parse(b); err != nil {
		return nil, fmt.Errorf("icons %s: %w", path, err)
	}
	return s, nil
}

// Parse replaces the set's contents with the YAML document in data.
func (s *Set) Parse(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	bitmaps := make(map[string]Bitmap, len(f.Icons))
	for _, e := range f.Icons {
		bm, err := s.decode(e)
		if err != nil {
			return err
		}
		bitmaps[e.Name] = bm
	}
	s.mu.Lock()
	s.entries = f.Icons
	s.bitmaps = bitmaps
	s.mu.Unlock()
	return nil
}

func (s *Set) decode(e Entry) (Bitmap, error) {
	if e.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if len(e.Rows) != s.H {
		return nil, fmt.Errorf("%w %q: %d rows, want %d", ErrInvalid, e.Name, len(e.Rows), s.H)
	}
	bm := Blank(s.W, s.H)
	for y, row := range e.Rows {
		if len(row) != s.W {
			return nil, fmt.Errorf("%w %q: row %d has %d columns, want %d", ErrInvalid, e.Name, y, len(row), s.W)
		}
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case '#', '1':
				bm[y][x] = 1
			case '.', '0', ' ':
			default:
				return nil, fmt.Errorf("%w %q: bad cell %q at %d,%d", ErrInvalid, e.Name, row[x], x, y)
			}
		}
	}
	return bm, nil
}

// Save writes the set to path.
func (s *Set) Save(path string) error {
	s.mu.RLock()
	b, err := yaml.Marshal(file{Icons: s.entries})
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Put adds or replaces the icon named e.Name.
func (s *Set) Put(e Entry) error {
	bm, err := s.decode(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bitmaps[e.Name] = bm
	for i := range s.entries {
		if s.entries[i].Name == e.Name {
			s.entries[i] = e
			return nil
		}
	}
	s.entries = append(s.entries, e)
	return nil
}

// Delete removes the named icon and reports whether it existed.
func (s *Set) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Name == name {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			delete(s.bitmaps, name)
			return true
		}
	}
	return false
}

func (s *Set) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Entry(nil), s.entries...)
}

// For returns the first icon whose keywords occur in label (case-insensitive),
// or a blank bitmap when none does.
func (s *Set) For(label string) Bitmap {
	if s == nil {
		return nil
	}
	l := strings.ToLower(label)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		for _, m := range e.Match {
			if m != "" && strings.Contains(l, strings.ToLower(m)) {
				return s.bitmaps[e.Name]
			}
		}
	}
	return Blank(s.W, s.H)
}
