package search

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/tubebox/internal/domain/track"
	"github.com/osa030/tubebox/internal/infra/spotify"
	"github.com/osa030/tubebox/internal/infra/ytdlp"
)

// SpotifyClient defines the Spotify operations needed by the provider.
type SpotifyClient interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]spotify.Track, error)
	GetTrack(ctx context.Context, trackID string) (spotify.Track, error)
}

// SpotifyProviderConfig holds Spotify provider settings.
type SpotifyProviderConfig struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	Market       string `mapstructure:"market" default:"US" validate:"len=2"`
}

// SpotifyProvider searches the Spotify catalog. Spotify audio cannot be
// fetched, so each hit becomes a yt-dlp search id for the same song.
type SpotifyProvider struct {
	client SpotifyClient
}

// NewSpotifyProvider creates a Spotify provider from its settings.
func NewSpotifyProvider(ctx context.Context, settings map[string]any) (*SpotifyProvider, error) {
	var config SpotifyProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}

	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Market:       config.Market,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create spotify client")
	}
	return NewSpotifyProviderWithClient(client), nil
}

// NewSpotifyProviderWithClient creates a Spotify provider over client.
func NewSpotifyProviderWithClient(client SpotifyClient) *SpotifyProvider {
	return &SpotifyProvider{client: client}
}

// Search implements Provider.
func (p *SpotifyProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	hits, err := p.client.SearchTracks(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(hits, func(h spotify.Track, _ int) track.Track {
		return playable(h.Artists, h.Name)
	}), nil
}

// Expand implements Expander for Spotify track URLs and URIs.
func (p *SpotifyProvider) Expand(ctx context.Context, input string) (track.Track, bool, error) {
	if !spotify.IsTrackLink(input) {
		return track.Track{}, false, nil
	}
	hit, err := p.client.GetTrack(ctx, input)
	if err != nil {
		return track.Track{}, true, errors.Wrap(err, "failed to look up spotify track")
	}
	return playable(hit.Artists, hit.Name), true, nil
}

// Name implements Provider.
func (p *SpotifyProvider) Name() string {
	return "spotify"
}

// playable maps a catalog song to a yt-dlp search id and display title.
func playable(artists []string, name string) track.Track {
	title := strings.TrimSpace(name)
	if who := strings.Join(artists, ", "); who != "" {
		title = who + " - " + title
	}
	return track.Track{ID: ytdlp.SearchID(artists, name), Title: title}
}
