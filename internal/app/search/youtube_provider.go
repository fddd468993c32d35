package search

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/tubebox/internal/domain/track"
)

// YouTubeSearcher is the yt-dlp search operation.
type YouTubeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}

// YouTubeProviderConfig holds YouTube provider settings.
type YouTubeProviderConfig struct {
	MaxResults int `mapstructure:"max_results" default:"10" validate:"gte=1,lte=50"`
}

// YouTubeProvider searches YouTube. Ids are video ids.
type YouTubeProvider struct {
	searcher YouTubeSearcher
	config   YouTubeProviderConfig
}

// NewYouTubeProvider creates a YouTube provider.
func NewYouTubeProvider(searcher YouTubeSearcher, settings map[string]any) (*YouTubeProvider, error) {
	if searcher == nil {
		return nil, errors.New("youtube searcher is required")
	}
	var config YouTubeProviderConfig
	if err := decodeSettings(settings, &config); err != nil {
		return nil, err
	}
	return &YouTubeProvider{searcher: searcher, config: config}, nil
}

// Search implements Provider.
func (p *YouTubeProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if limit > p.config.MaxResults {
		limit = p.config.MaxResults
	}
	return p.searcher.Search(ctx, query, limit)
}

// Name implements Provider.
func (p *YouTubeProvider) Name() string {
	return "youtube"
}
