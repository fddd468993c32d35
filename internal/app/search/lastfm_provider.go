package search

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/lastfm"
)

// LastFmClient defines the Last.fm operations needed by the provider.
type LastFmClient interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]lastfm.Track, error)
}

// LastFmProviderConfig holds Last.fm provider settings.
type LastFmProviderConfig struct {
	APIKey       string `mapstructure:"api_key" validate:"required"`
	MinListeners int    `mapstructure:"min_listeners" default:"0" validate:"gte=0"`
}

// LastFmProvider searches Last.fm. Like Spotify hits, matches become
// yt-dlp search ids.
type LastFmProvider struct {
	client LastFmClient
	config LastFmProviderConfig
}

// NewLastFmProvider creates a Last.fm provider from its settings.
func NewLastFmProvider(settings map[string]any) (*LastFmProvider, error) {
	var config LastFmProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	client, err := lastfm.New(lastfm.Config{APIKey: config.APIKey})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create last.fm client")
	}
	return NewLastFmProviderWithClient(client, config), nil
}

// NewLastFmProviderWithClient creates a Last.fm provider over client.
func NewLastFmProviderWithClient(client LastFmClient, config LastFmProviderConfig) *LastFmProvider {
	return &LastFmProvider{client: client, config: config}
}

// Search implements Provider. Matches below the listener threshold are dropped.
func (p *LastFmProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	matches, err := p.client.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	popular := lo.Filter(matches, func(m lastfm.Track, _ int) bool {
		return m.Listeners >= p.config.MinListeners
	})
	return lo.Map(popular, func(m lastfm.Track, _ int) track.Track {
		var artists []string
		if m.Artist != "" {
			artists = []string{m.Artist}
		}
		return playable(artists, m.Name)
	}), nil
}

// Name implements Provider.
func (p *LastFmProvider) Name() string {
	return "lastfm"
}
