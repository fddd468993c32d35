package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// NullConfig configures the silent device.
type NullConfig struct {
	// FallbackSeconds is the length used when an asset cannot be decoded.
	// Zero makes undecodable assets a load error.
	FallbackSeconds int `mapstructure:"fallback_seconds" default:"0" validate:"gte=0"`
}

// Null is a silent device that plays assets by wall clock. It is used on
// hosts without an audio output.
type Null struct {
	mu     sync.Mutex
	config NullConfig
	now    func() time.Time

	length  time.Duration
	loaded  bool
	started time.Time
	elapsed time.Duration // Accumulated before the last pause
	paused  bool
	running bool
}

// NewNull creates a silent device.
func NewNull(config NullConfig) *Null {
	return &Null{config: config, now: time.Now}
}

// Load measures the asset.
func (d *Null) Load(path string) (time.Duration, error) {
	length, err := Measure(path)
	if err != nil {
		if d.config.FallbackSeconds <= 0 {
			return 0, err
		}
		length = time.Duration(d.config.FallbackSeconds) * time.Second
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.length = length
	d.loaded = true
	d.elapsed = 0
	d.paused = false
	d.running = false
	return length, nil
}

// Start begins the wall clock.
func (d *Null) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return errors.New("no asset loaded")
	}
	d.started = d.now()
	d.running = true
	return nil
}

// Pause stops the wall clock.
func (d *Null) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || d.paused {
		return
	}
	d.elapsed += d.now().Sub(d.started)
	d.paused = true
}

// Resume restarts the wall clock.
func (d *Null) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || !d.paused {
		return
	}
	d.started = d.now()
	d.paused = false
}

// Stop releases the asset.
func (d *Null) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loaded = false
	d.running = false
	d.paused = false
	d.elapsed = 0
	d.length = 0
}

// Active reports whether the simulated playback has time left.
func (d *Null) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return false
	}
	played := d.elapsed
	if !d.paused {
		played += d.now().Sub(d.started)
	}
	return played < d.length
}
