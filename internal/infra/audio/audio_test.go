package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func writeAsset(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0o644))
	return path
}

func TestNull_WallClockPlayback(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	d := NewNull(NullConfig{FallbackSeconds: 10})
	d.now = clock.Now

	length, err := d.Load(writeAsset(t, "song.mp3"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, length)
	assert.False(t, d.Active(), "not active before start")

	require.NoError(t, d.Start())
	clock.Advance(4 * time.Second)
	assert.True(t, d.Active())

	// Time spent paused does not count.
	d.Pause()
	clock.Advance(time.Hour)
	assert.True(t, d.Active())
	d.Resume()

	clock.Advance(5 * time.Second)
	assert.True(t, d.Active())
	clock.Advance(time.Second)
	assert.False(t, d.Active())

	d.Stop()
	assert.False(t, d.Active())
}

func TestNull_StartWithoutLoad(t *testing.T) {
	d := NewNull(NullConfig{})
	assert.Error(t, d.Start())
}

func TestNull_UndecodableAsset(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		fallback int
		wantErr  bool
	}{
		{name: "garbage mp3 without fallback", file: "bad.mp3", wantErr: true},
		{name: "unsupported extension without fallback", file: "song.ogg", wantErr: true},
		{name: "garbage mp3 with fallback", file: "bad.mp3", fallback: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewNull(NullConfig{FallbackSeconds: tt.fallback})
			length, err := d.Load(writeAsset(t, tt.file))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, time.Duration(tt.fallback)*time.Second, length)
		})
	}
}

func TestMeasure_UnsupportedFormat(t *testing.T) {
	_, err := Measure(writeAsset(t, "song.flac"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Measure(filepath.Join(t.TempDir(), "missing.mp3"))
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		deviceType string
		settings   map[string]any
		wantErr    bool
	}{
		{name: "null device", deviceType: TypeNull},
		{name: "null device with settings", deviceType: TypeNull, settings: map[string]any{"fallback_seconds": 30}},
		{name: "invalid null settings", deviceType: TypeNull, settings: map[string]any{"fallback_seconds": -1}, wantErr: true},
		{name: "unknown type", deviceType: "cassette", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, err := New(tt.deviceType, tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, &Null{}, device)
		})
	}

	device, err := New(TypeNull, map[string]any{"fallback_seconds": 30})
	require.NoError(t, err)
	assert.Equal(t, 30, device.(*Null).config.FallbackSeconds)
}
