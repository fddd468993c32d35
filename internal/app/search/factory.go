package search

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/infra/config"
)

// NewChainFromConfig creates a provider chain from configuration. With no
// providers configured the chain searches YouTube only.
func NewChainFromConfig(ctx context.Context, cfg config.SearchConfig, youtube YouTubeSearcher) (*Chain, error) {
	providerConfigs := cfg.Providers
	if len(providerConfigs) == 0 {
		providerConfigs = []config.ProviderConfig{{Type: "youtube", DisplayName: "YouTube"}}
	}

	var providers []ProviderWithMetadata
	for i, pcfg := range providerConfigs {
		var provider Provider
		var err error
		zlog.Debug().Msgf("creating search provider: index=%d type=%s", i+1, pcfg.Type)
		switch pcfg.Type {
		case "youtube":
			provider, err = NewYouTubeProvider(youtube, pcfg.Settings)

		case "spotify":
			provider, err = NewSpotifyProvider(ctx, pcfg.Settings)

		case "lastfm":
			provider, err = NewLastFmProvider(pcfg.Settings)

		default:
			return nil, errors.Newf("unsupported provider type: %s (provider index %d)", pcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create provider (index %d, type %s)", i, pcfg.Type)
		}

		providers = append(providers, ProviderWithMetadata{
			Provider:    provider,
			DisplayName: pcfg.DisplayName,
		})

		zlog.Info().Msgf("registered search provider: index=%d type=%s display_name=%s", i+1, pcfg.Type, pcfg.DisplayName)
	}

	return NewChain(providers, cfg.Limit), nil
}
