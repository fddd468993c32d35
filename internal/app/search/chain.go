package search

import (
	"context"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultLimit caps the number of results returned by a chain.
const DefaultLimit = 10

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Chain queries every provider and merges their results.
type Chain struct {
	providers []ProviderWithMetadata
	limit     int
}

// NewChain creates a new provider chain.
func NewChain(providers []ProviderWithMetadata, limit int) *Chain {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Chain{
		providers: providers,
		limit:     limit,
	}
}

// Search returns up to the chain limit results for query, in provider order.
// Duplicate ids keep their first occurrence. Provider failures are logged and
// skipped, so the result is empty rather than an error when all of them fail.
func (c *Chain) Search(ctx context.Context, query string) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}
	}

	var all []Result
	for i, pm := range c.providers {
		if len(all) >= c.limit {
			break
		}
		zlog.Debug().Msgf("search: trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Search(ctx, query, c.limit)
		if err != nil {
			zlog.Warn().Msgf("search: provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			continue
		}

		all = append(all, lo.Map(tracks, func(t track.Track, _ int) Result {
			return Result{Track: t, Source: pm.DisplayName}
		})...)
		zlog.Debug().Msgf("search: provider returned results: provider=%s count=%d", pm.DisplayName, len(tracks))
	}

	results := lo.UniqBy(lo.Filter(all, func(r Result, _ int) bool {
		return r.Track.ID != ""
	}), func(r Result) string {
		return r.Track.ID
	})
	if len(results) > c.limit {
		results = results[:c.limit]
	}

	zlog.Info().Msgf("search: query=%q results=%d", query, len(results))
	return results
}

// Expand asks each provider that understands catalog links to turn input into
// a playable track. It returns ok=false when no provider claims input.
func (c *Chain) Expand(ctx context.Context, input string) (track.Track, bool, error) {
	for _, pm := range c.providers {
		expander, ok := pm.Provider.(Expander)
		if !ok {
			continue
		}
		t, ok, err := expander.Expand(ctx, input)
		if err != nil {
			return track.Track{}, true, err
		}
		if ok {
			zlog.Debug().Msgf("search: expanded link: provider=%s input=%s id=%s", pm.DisplayName, input, t.ID)
			return t, true, nil
		}
	}
	return track.Track{}, false, nil
}

// Providers returns the display names of the configured providers.
func (c *Chain) Providers() []string {
	return lo.Map(c.providers, func(pm ProviderWithMetadata, _ int) string {
		return pm.DisplayName
	})
}
