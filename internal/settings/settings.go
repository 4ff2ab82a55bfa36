// Package settings holds the operator-tunable settings of the proximity
// ticker and persists them as JSON in the per-user data directory.
package settings

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quasilyte/gdata"

	"github.com/cursorbeacon/cursorbeacon/internal/anchor"
)

// AppName names the per-user data directory
const AppName = "cursorbeacon"

const itemKey = "settings"

// ErrUnknownFrequency is returned for frequency names that are not presets
var ErrUnknownFrequency = errors.New("settings: unknown frequency")

// Frequency is a ticker cadence preset
type Frequency string

const (
	FrequencyLow    Frequency = "low"
	FrequencyMedium Frequency = "medium"
	FrequencyHigh   Frequency = "high"
	FrequencyCustom Frequency = "custom"
)

// presets maps named frequencies to tick intervals
var presets = map[Frequency]time.Duration{
	FrequencyLow:    500 * time.Millisecond,
	FrequencyMedium: 100 * time.Millisecond,
	FrequencyHigh:   33 * time.Millisecond,
}

// ParseFrequency accepts preset names case-insensitively
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presets[f]; ok || f == FrequencyCustom {
		return f, nil
	}
	return "", errors.Wrapf(ErrUnknownFrequency, "%q", s)
}

// Settings are the persisted operator settings
type Settings struct {
	Enabled    bool      `json:"enabled"`
	Frequency  Frequency `json:"frequency"`
	IntervalMs int       `json:"interval_ms,omitempty"` // used when Frequency is custom
	OffsetX    int       `json:"offset_x"`
	OffsetY    int       `json:"offset_y"`
}

// Default returns the settings of a fresh install
func Default() Settings {
	return Settings{
		Enabled:   true,
		Frequency: FrequencyMedium,
		OffsetX:   100,
		OffsetY:   0,
	}
}

// Interval resolves the tick interval
func (s Settings) Interval() (time.Duration, error) {
	if d, ok := presets[s.Frequency]; ok {
		return d, nil
	}
	if s.Frequency == FrequencyCustom {
		if s.IntervalMs <= 0 {
			return 0, errors.Errorf("custom frequency needs a positive interval, got %dms", s.IntervalMs)
		}
		return time.Duration(s.IntervalMs) * time.Millisecond, nil
	}
	return 0, errors.Wrapf(ErrUnknownFrequency, "%q", s.Frequency)
}

// Offset returns the anchor offset
func (s Settings) Offset() anchor.Offset {
	return anchor.Offset{X: s.OffsetX, Y: s.OffsetY}
}

// Validate checks that the settings resolve to a usable interval
func (s Settings) Validate() error {
	_, err := s.Interval()
	return err
}

func (s Settings) String() string {
	d, err := s.Interval()
	interval := d.String()
	if err != nil {
		interval = "invalid"
	}
	return fmt.Sprintf("enabled=%t frequency=%s interval=%s offset=(%d,%d)",
		s.Enabled, s.Frequency, interval, s.OffsetX, s.OffsetY)
}

// ItemStore is the key/value persistence used by Store. *gdata.Manager
// satisfies it.
type ItemStore interface {
	LoadItem(itemKey string) ([]byte, error)
	SaveItem(itemKey string, data []byte) error
}

// Store loads and saves settings. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	items ItemStore
}

// Open opens the store in the per-user data directory of appName
func Open(appName string) (*Store, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open settings storage")
	}
	return NewStore(m), nil
}

// NewStore wraps an item store
func NewStore(items ItemStore) *Store {
	return &Store{items: items}
}

// Load reads the settings. Missing settings yield Default with no error;
// unreadable or invalid settings yield Default with an error.
func (s *Store) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.items.LoadItem(itemKey)
	if err != nil {
		return Default(), errors.Wrap(err, "failed to load settings")
	}
	if data == nil {
		return Default(), nil
	}

	st := Default()
	if err := json.Unmarshal(data, &st); err != nil {
		return Default(), errors.Wrap(err, "failed to parse settings")
	}
	if err := st.Validate(); err != nil {
		return Default(), errors.Wrap(err, "invalid settings")
	}
	return st, nil
}

// Save validates and writes the settings
func (s *Store) Save(st Settings) error {
	if err := st.Validate(); err != nil {
		return errors.Wrap(err, "invalid settings")
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode settings")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.items.SaveItem(itemKey, data); err != nil {
		return errors.Wrap(err, "failed to save settings")
	}
	return nil
}

// Update loads the settings, applies fn and saves the result
func (s *Store) Update(fn func(*Settings) error) (Settings, error) {
	st, err := s.Load()
	if err != nil {
		return st, err
	}
	if err := fn(&st); err != nil {
		return st, err
	}
	return st, s.Save(st)
}
