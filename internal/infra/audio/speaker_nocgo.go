//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrSpeakerUnavailable is returned when the build has no audio output.
var ErrSpeakerUnavailable = errors.New("speaker output requires cgo on this platform; use the null device")

// SpeakerConfig configures the system audio output.
type SpeakerConfig struct {
	SampleRate      int `mapstructure:"sample_rate" default:"44100" validate:"gte=8000"`
	BufferMillis    int `mapstructure:"buffer_ms" default:"100" validate:"gte=10"`
	ResampleQuality int `mapstructure:"resample_quality" default:"4" validate:"gte=1,lte=64"`
}

// Speaker is unavailable in this build.
type Speaker struct{}

// NewSpeaker always fails in builds without cgo.
func NewSpeaker(config SpeakerConfig) (*Speaker, error) {
	return nil, ErrSpeakerUnavailable
}

func (s *Speaker) Load(path string) (time.Duration, error) { return 0, ErrSpeakerUnavailable }
func (s *Speaker) Start() error                            { return ErrSpeakerUnavailable }
func (s *Speaker) Pause()                                  {}
func (s *Speaker) Resume()                                 {}
func (s *Speaker) Stop()                                   {}
func (s *Speaker) Active() bool                            { return false }
