package track

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain video ID",
			input:    "dQw4w9WgXcQ",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "watch URL",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "watch URL with extra params",
			input:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL123&t=42s",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "short link",
			input:    "https://youtu.be/dQw4w9WgXcQ",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "music URL",
			input:    "https://music.youtube.com/watch?v=dQw4w9WgXcQ",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "shorts URL",
			input:    "https://youtube.com/shorts/abc123",
			expected: "abc123",
		},
		{
			name:     "non-YouTube URL passes through",
			input:    "https://soundcloud.com/artist/song",
			expected: "https://soundcloud.com/artist/song",
		},
		{
			name:     "search lookup passes through",
			input:    "ytsearch1:Queen - Bohemian Rhapsody",
			expected: "ytsearch1:Queen - Bohemian Rhapsody",
		},
		{
			name:     "whitespace is trimmed",
			input:    "  dQw4w9WgXcQ \n",
			expected: "dQw4w9WgXcQ",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseID(tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	tr, err := New("https://youtu.be/abc", "  Some Title ")
	require.NoError(t, err)
	assert.Equal(t, "abc", tr.ID)
	assert.Equal(t, "Some Title", tr.Title)

	_, err = New("   ", "title")
	assert.True(t, errors.Is(err, ErrInvalidTrack))
}

func TestTrack_DisplayTitle(t *testing.T) {
	assert.Equal(t, "Title", Track{ID: "id", Title: "Title"}.DisplayTitle())
	assert.Equal(t, "id", Track{ID: "id"}.DisplayTitle())
	assert.Equal(t, "New", Track{ID: "id", Title: "Old"}.WithTitle("New").Title)
}
