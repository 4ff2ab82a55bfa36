package settings

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursorbeacon/cursorbeacon/internal/anchor"
)

type memItems struct {
	data    map[string][]byte
	loadErr error
	saveErr error
}

func newMemItems() *memItems {
	return &memItems{data: make(map[string][]byte)}
}

func (m *memItems) LoadItem(key string) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[key], nil
}

func (m *memItems) SaveItem(key string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = data
	return nil
}

func TestIntervalPresets(t *testing.T) {
	tests := []struct {
		freq Frequency
		want time.Duration
	}{
		{FrequencyLow, 500 * time.Millisecond},
		{FrequencyMedium, 100 * time.Millisecond},
		{FrequencyHigh, 33 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			s := Default()
			s.Frequency = tt.freq
			got, err := s.Interval()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomInterval(t *testing.T) {
	s := Default()
	s.Frequency = FrequencyCustom
	_, err := s.Interval()
	assert.Error(t, err)

	s.IntervalMs = 250
	got, err := s.Interval()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, got)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" High ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyHigh, f)

	_, err = ParseFrequency("ludicrous")
	assert.True(t, errors.Is(err, ErrUnknownFrequency))
}

func TestDefaults(t *testing.T) {
	s := Default()
	assert.True(t, s.Enabled)
	assert.Equal(t, FrequencyMedium, s.Frequency)
	assert.Equal(t, anchor.Offset{X: 100, Y: 0}, s.Offset())
	assert.Equal(t, "enabled=true frequency=medium interval=100ms offset=(100,0)", s.String())
}

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(newMemItems())

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), got)

	want := Settings{Enabled: false, Frequency: FrequencyLow, OffsetX: 140, OffsetY: -3}
	require.NoError(t, store.Save(want))

	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreRejectsInvalid(t *testing.T) {
	items := newMemItems()
	store := NewStore(items)

	err := store.Save(Settings{Frequency: "warp"})
	assert.True(t, errors.Is(err, ErrUnknownFrequency))
	assert.Empty(t, items.data)

	items.data[itemKey] = []byte(`{"frequency":"warp"}`)
	got, err := store.Load()
	assert.Error(t, err)
	assert.Equal(t, Default(), got)

	items.data[itemKey] = []byte(`{not json`)
	got, err = store.Load()
	assert.Error(t, err)
	assert.Equal(t, Default(), got)
}

func TestStoreMissingFieldsKeepDefaults(t *testing.T) {
	items := newMemItems()
	items.data[itemKey] = []byte(`{"frequency":"high"}`)

	got, err := NewStore(items).Load()
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, 100, got.OffsetX)
	assert.Equal(t, FrequencyHigh, got.Frequency)
}

func TestUpdate(t *testing.T) {
	items := newMemItems()
	store := NewStore(items)

	got, err := store.Update(func(s *Settings) error {
		s.OffsetX = 60
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 60, got.OffsetX)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, loaded.OffsetX)

	items.saveErr = errors.New("disk full")
	_, err = store.Update(func(s *Settings) error { return nil })
	assert.Error(t, err)
}
