package lastfm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchTracks(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "track.search", r.URL.Query().Get("method"))
		assert.Equal(t, "believe", r.URL.Query().Get("track"))
		assert.Equal(t, "test_key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		response := `{
			"results": {
				"trackmatches": {
					"track": [
						{"name": "Believe", "artist": "Cher", "url": "url1", "listeners": "1234"},
						{"name": "", "artist": "Nobody", "listeners": "0"},
						{"name": "Believe", "artist": "Mumford & Sons", "listeners": "99"}
					]
				}
			}
		}`
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, response)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	ctx := context.Background()
	tracks, err := client.SearchTracks(ctx, "believe", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "Believe", tracks[0].Name)
	assert.Equal(t, "Cher", tracks[0].Artist)
	assert.Equal(t, 1234, tracks[0].Listeners)
	assert.Equal(t, "Mumford & Sons", tracks[1].Artist)

	// Second call is served from cache.
	cached, err := client.SearchTracks(ctx, "Believe", 5)
	require.NoError(t, err)
	assert.Equal(t, tracks, cached)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearchTracks_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"error": 10, "message": "Invalid API key"}`)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "bad_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.SearchTracks(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestSearchTracks_HTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	client.baseURL = server.URL + "/"

	_, err = client.SearchTracks(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSearchTracks_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	client, err := New(Config{APIKey: "test_key"})
	require.NoError(t, err)
	_, err = client.SearchTracks(context.Background(), "   ", 5)
	assert.Error(t, err)
}
