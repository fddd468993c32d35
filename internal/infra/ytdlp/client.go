// Package ytdlp fetches and searches remote audio through the yt-dlp binary.
package ytdlp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

const watchURL = "https://www.youtube.com/watch?v="

// Config holds yt-dlp options.
type Config struct {
	Format       string // Source format selector
	AudioFormat  string // Post-processed audio format, also the asset extension
	AudioQuality string
	Proxy        string
}

// Client runs yt-dlp.
type Client struct {
	config Config
}

// New creates a new yt-dlp client.
func New(cfg Config) *Client {
	if cfg.Format == "" {
		cfg.Format = "bestaudio/best"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "192K"
	}
	return &Client{config: cfg}
}

// Install makes sure a yt-dlp binary is available, downloading it if needed.
func Install(ctx context.Context) error {
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to install yt-dlp")
	}
	zlog.Info().Msgf("ytdlp: using binary: path=%s version=%s", resolved.Executable, resolved.Version)
	return nil
}

// command returns a command with the options shared by fetch and search.
func (c *Client) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoWarnings().
		IgnoreConfig().
		NoPlaylist()

	if c.config.Proxy != "" {
		cmd.Proxy(c.config.Proxy)
	}
	return cmd
}

// Fetch downloads id as audio to base.<audio format> and returns the final
// path and the remote title.
func (c *Client) Fetch(ctx context.Context, id string, base string) (string, string, error) {
	source := SourceURL(id)
	if source == "" {
		return "", "", errors.New("empty track id")
	}

	cmd := c.command().
		Format(c.config.Format).
		ExtractAudio().
		AudioFormat(c.config.AudioFormat).
		AudioQuality(c.config.AudioQuality).
		ForceOverwrites().
		Output(base + ".%(ext)s").
		Print("after_move:%(filepath)s\t%(title)s").
		NoSimulate()

	cmd.ProgressFunc(2*time.Second, func(update ytdlp.ProgressUpdate) {
		zlog.Debug().Msgf("ytdlp: downloading: id=%s status=%s percent=%.1f", id, update.Status, update.Percent())
	})

	start := time.Now()
	res, err := cmd.Run(ctx, source)
	if err != nil {
		return "", "", errors.Wrapf(err, "yt-dlp failed for %s", id)
	}

	path, title := parseFetchOutput(res.Stdout)
	if path == "" {
		path = base + "." + c.config.AudioFormat
	}
	if _, err := os.Stat(path); err != nil {
		return "", "", errors.Wrapf(err, "yt-dlp produced no asset for %s", id)
	}

	zlog.Info().Msgf("ytdlp: fetched: id=%s title=%q elapsed=%v", id, title, time.Since(start).Round(time.Millisecond))
	return path, title, nil
}

// Search runs a flat yt-dlp search and returns up to limit videos.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []track.Track{}, nil
	}
	if limit <= 0 {
		limit = 5
	}

	res, err := c.command().
		FlatPlaylist().
		Print("%(id)s\t%(title)s").
		Run(ctx, fmt.Sprintf("ytsearch%d:%s", limit, query))
	if err != nil {
		return nil, errors.Wrapf(err, "yt-dlp search failed for %q", query)
	}

	return parseSearchOutput(res.Stdout, limit), nil
}

// SourceURL maps a track id to the argument passed to yt-dlp. Plain video ids
// become watch URLs; URLs and ytsearch queries pass through.
func SourceURL(id string) string {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return ""
	case strings.Contains(id, "://"), strings.HasPrefix(id, "ytsearch"):
		return id
	default:
		return watchURL + id
	}
}

// SearchID builds a track id that yt-dlp resolves to the first search hit.
func SearchID(artists []string, name string) string {
	query := strings.TrimSpace(name)
	if who := strings.TrimSpace(strings.Join(artists, ", ")); who != "" {
		query = who + " - " + query
	}
	return "ytsearch1:" + query
}

// parseFetchOutput reads the path and title printed after post-processing.
func parseFetchOutput(stdout string) (path, title string) {
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		path = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			title = strings.TrimSpace(parts[1])
		}
		return path, title
	}
	return "", ""
}

// parseSearchOutput reads "<id>\t<title>" lines.
func parseSearchOutput(stdout string, limit int) []track.Track {
	results := []track.Track{}
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.SplitN(strings.TrimSpace(line), "\t", 2)
		if len(parts) < 2 || parts[0] == "" || parts[0] == "NA" {
			continue
		}
		results = append(results, track.Track{ID: parts[0], Title: strings.TrimSpace(parts[1])})
		if len(results) == limit {
			break
		}
	}
	return results
}
