// Package audio provides playback devices for the engine.
package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Device types
const (
	TypeSpeaker = "speaker"
	TypeNull    = "null"
)

// ErrUnsupportedFormat is returned for assets the decoder cannot read.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Device is an audio output that plays one asset at a time.
type Device interface {
	Load(path string) (time.Duration, error)
	Start() error
	Pause()
	Resume()
	Stop()
	Active() bool
}

// New creates a device of the given type from its settings map.
func New(deviceType string, settings map[string]any) (Device, error) {
	zlog.Debug().Msgf("audio: creating device: type=%s settings=%+v", deviceType, settings)

	switch deviceType {
	case TypeSpeaker, "":
		var config SpeakerConfig
		if err := decodeSettings(settings, &config); err != nil {
			return nil, errors.Wrap(err, "invalid speaker settings")
		}
		device, err := NewSpeaker(config)
		if err != nil {
			return nil, err
		}
		return device, nil

	case TypeNull:
		var config NullConfig
		if err := decodeSettings(settings, &config); err != nil {
			return nil, errors.Wrap(err, "invalid null device settings")
		}
		return NewNull(config), nil

	default:
		return nil, errors.Newf("unsupported device type: %s", deviceType)
	}
}

func decodeSettings(settings map[string]any, out any) error {
	if len(settings) > 0 {
		if err := mapstructure.Decode(settings, out); err != nil {
			return errors.Wrap(err, "failed to decode settings")
		}
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}

// decode opens and decodes the asset at path.
func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".mp3" {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to open asset")
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrap(err, "failed to decode asset")
	}
	return streamer, format, nil
}

// Measure returns the playable length of the asset at path.
func Measure(path string) (time.Duration, error) {
	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}
