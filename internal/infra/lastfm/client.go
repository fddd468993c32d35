// Package lastfm provides a client for the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Cache for track.search results, keyed by query and limit
	searchCache map[string][]Track
	cacheMu     sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// Track is a track match from Last.fm.
type Track struct {
	Name      string
	Artist    string
	Listeners int
}

// SearchResponse represents the response from track.search API.
type SearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name      string `json:"name"`
				Artist    string `json:"artist"`
				Listeners string `json:"listeners"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// LastFMError represents an error response from Last.fm API.
type LastFMError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		searchCache: make(map[string][]Track),
	}, nil
}

// SearchTracks searches Last.fm for tracks matching query.
// Reference: https://www.last.fm/api/show/track.search
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query is required")
	}

	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(query), limit)
	c.cacheMu.RLock()
	if cached, ok := c.searchCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("lastfm: search cache hit: query=%q", query)
		return cached, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("method", "track.search")
	params.Set("api_key", c.apiKey)
	params.Set("track", query)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("format", "json")

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var response SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	tracks := make([]Track, 0, len(response.Results.TrackMatches.Track))
	for _, t := range response.Results.TrackMatches.Track {
		if t.Name == "" {
			continue
		}
		var listeners int
		fmt.Sscanf(t.Listeners, "%d", &listeners)
		tracks = append(tracks, Track{
			Name:      t.Name,
			Artist:    t.Artist,
			Listeners: listeners,
		})
	}

	c.cacheMu.Lock()
	c.searchCache[cacheKey] = tracks
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("lastfm: cached search results: query=%q count=%d", query, len(tracks))

	return tracks, nil
}

// get performs a GET against the API and returns the raw body.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	// Last.fm reports API errors in the body, sometimes with a 200 status
	var apiError LastFMError
	if err := json.Unmarshal(body, &apiError); err == nil && apiError.Error != 0 {
		return nil, errors.Newf("last.fm API error %d: %s", apiError.Error, apiError.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("last.fm API returned status %d", resp.StatusCode)
	}

	return body, nil
}
