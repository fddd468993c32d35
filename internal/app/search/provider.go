// Package search finds playable tracks through a chain of catalog providers.
package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/tubebox/internal/domain/track"
)

// Provider searches one catalog. Returned track ids must be resolvable by
// the media fetcher.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)

	// Name returns the provider type (used in config).
	Name() string
}

// Expander is implemented by providers that can turn a catalog link into
// a playable track.
type Expander interface {
	// Expand returns ok=false when input is not one of the provider's links.
	Expand(ctx context.Context, input string) (t track.Track, ok bool, err error)
}

// Result is a search hit tagged with the provider that produced it.
type Result struct {
	Track  track.Track
	Source string
}

// decodeSettings decodes, defaults and validates provider settings.
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
