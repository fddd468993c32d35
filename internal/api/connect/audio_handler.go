package connect

import (
	"net/http"
	"os"
	"path/filepath"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/cache"
)

// AudioPattern is the route of the cached audio handler.
const AudioPattern = "GET /audio/{id}"

// AssetLookup finds cached assets without fetching.
type AssetLookup interface {
	Lookup(id string) (cache.Entry, bool)
}

// NewAudioHandler serves cached assets by track id. Tracks that are not
// cached yet return 404.
func NewAudioHandler(assets AssetLookup) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		entry, ok := assets.Lookup(id)
		if !ok {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(entry.Path)
		if err != nil {
			zlog.Warn().Err(err).Msgf("audio: cannot open asset: id=%s path=%s", id, entry.Path)
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, "cannot stat asset", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, filepath.Base(entry.Path), info.ModTime(), f)
	})
}
