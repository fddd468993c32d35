// Package track provides the Track domain entity.
package track

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidTrack is returned when a track payload has no usable identifier.
var ErrInvalidTrack = errors.New("invalid track")

// Track represents a playable unit.
// Identity is the ID; the title is display-only and may be empty until resolved.
type Track struct {
	ID    string `json:"id"`    // Opaque media identifier (YouTube video ID by default)
	Title string `json:"title"` // Display title
}

// New creates a track from raw input. URLs are normalised with ParseID.
func New(id, title string) (Track, error) {
	id = ParseID(id)
	if id == "" {
		return Track{}, errors.Wrap(ErrInvalidTrack, "track id is required")
	}
	return Track{
		ID:    id,
		Title: strings.TrimSpace(title),
	}, nil
}

// DisplayTitle returns the title, falling back to the ID.
func (t Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}

// WithTitle returns a copy of the track with the given title.
func (t Track) WithTitle(title string) Track {
	t.Title = title
	return t
}

// ParseID extracts a video ID from a YouTube URL.
// Anything that is not a recognised YouTube URL is returned trimmed and unchanged.
func ParseID(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if !strings.HasPrefix(input, "http://") && !strings.HasPrefix(input, "https://") {
		return input
	}

	u, err := url.Parse(input)
	if err != nil {
		return input
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		// https://youtu.be/VIDEO_ID
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		// https://www.youtube.com/watch?v=VIDEO_ID
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		// https://www.youtube.com/shorts/VIDEO_ID, /embed/VIDEO_ID, /live/VIDEO_ID
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live":
				return parts[1]
			}
		}
	}

	return input
}
