//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// SpeakerConfig configures the system audio output.
type SpeakerConfig struct {
	SampleRate      int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000"`
	BufferMillis    int `mapstructure:"buffer_ms" default:"100" validate:"gte=10"`
	ResampleQuality int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// Speaker plays assets on the system audio output.
type Speaker struct {
	mu     sync.Mutex
	config SpeakerConfig

	initialized bool
	sampleRate  beep.SampleRate

	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	done     chan struct{}
	doneOnce *sync.Once
}

// NewSpeaker creates a speaker device. The output is opened on first load.
func NewSpeaker(config SpeakerConfig) (*Speaker, error) {
	return &Speaker{
		config:     config,
		sampleRate: beep.SampleRate(config.SampleRate),
	}, nil
}

func (s *Speaker) initLocked() error {
	if s.initialized {
		return nil
	}
	buffer := time.Duration(s.config.BufferMillis) * time.Millisecond
	if err := speaker.Init(s.sampleRate, s.sampleRate.N(buffer)); err != nil {
		return errors.Wrap(err, "failed to initialize speaker")
	}
	s.initialized = true
	return nil
}

// Load decodes the asset and returns its length.
func (s *Speaker) Load(path string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	if err := s.initLocked(); err != nil {
		streamer.Close()
		return 0, err
	}

	s.streamer = streamer
	s.format = format
	return format.SampleRate.D(streamer.Len()), nil
}

// Start plays the loaded asset.
func (s *Speaker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamer == nil {
		return errors.New("no asset loaded")
	}

	resampled := beep.Resample(s.config.ResampleQuality, s.format.SampleRate, s.sampleRate, s.streamer)
	s.ctrl = &beep.Ctrl{Streamer: resampled, Paused: false}

	done := make(chan struct{})
	once := &sync.Once{}
	s.done = done
	s.doneOnce = once

	speaker.Play(beep.Seq(s.ctrl, beep.Callback(func() {
		once.Do(func() { close(done) })
	})))
	return nil
}

// Pause pauses playback.
func (s *Speaker) Pause() {
	s.setPaused(true)
}

// Resume resumes playback.
func (s *Speaker) Resume() {
	s.setPaused(false)
}

func (s *Speaker) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl != nil {
		speaker.Lock()
		s.ctrl.Paused = paused
		speaker.Unlock()
	}
}

// Stop halts playback and releases the asset.
func (s *Speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Speaker) stopLocked() {
	if s.initialized {
		speaker.Clear()
	}
	if s.streamer != nil {
		s.streamer.Close()
		s.streamer = nil
	}
	if s.doneOnce != nil {
		done := s.done
		s.doneOnce.Do(func() { close(done) })
	}
	s.ctrl = nil
	s.done = nil
	s.doneOnce = nil
}

// Active reports whether the asset is still playing.
func (s *Speaker) Active() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
