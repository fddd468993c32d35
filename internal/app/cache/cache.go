// Package cache resolves track identifiers to locally playable audio assets.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	zlog "github.com/rs/zerolog/log"
)

// ErrAssetUnavailable marks a failed fetch or decode for an identifier.
var ErrAssetUnavailable = errors.New("asset unavailable")

// DefaultPlaceholderTitle is used for assets found on disk without metadata.
const DefaultPlaceholderTitle = "Cached Audio"

// Fetcher downloads and transcodes a track into a playable asset.
type Fetcher interface {
	// Fetch writes the asset for id next to base (base has no extension)
	// and returns the final file path and the resolved title.
	Fetch(ctx context.Context, id string, base string) (path string, title string, err error)
}

// Entry is a resolved asset. Entries are never mutated after creation.
type Entry struct {
	ID    string
	Path  string
	Title string
	Size  int64
}

// Config holds cache configuration.
type Config struct {
	Dir              string
	Extension        string // Asset extension produced by the fetcher (e.g. "mp3")
	MaxEntries       int    // 0 disables eviction
	PlaceholderTitle string

	// Verify, when set, checks that an asset is playable before it is cached.
	Verify func(path string) error
}

// call is an in-flight resolve shared by concurrent callers of the same id.
type call struct {
	done  chan struct{}
	entry Entry
	err   error
}

// Cache resolves identifiers to assets, fetching each identifier at most once at a time.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]Entry
	inflight map[string]*call
	recency  *lru.Cache[string, Entry] // nil when eviction is disabled
	pinned   func(id string) bool      // ids that must not be evicted

	fetcher Fetcher
	config  Config
}

var simpleID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// New creates a cache rooted at cfg.Dir.
func New(cfg Config, fetcher Fetcher) (*Cache, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if cfg.Extension == "" {
		cfg.Extension = "mp3"
	}
	if cfg.PlaceholderTitle == "" {
		cfg.PlaceholderTitle = DefaultPlaceholderTitle
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}

	c := &Cache{
		entries:  make(map[string]Entry),
		inflight: make(map[string]*call),
		fetcher:  fetcher,
		config:   cfg,
	}

	if cfg.MaxEntries > 0 {
		// The index only orders entries; trimLocked enforces MaxEntries so
		// pinned entries can be skipped.
		recency, err := lru.New[string, Entry](math.MaxInt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create eviction index")
		}
		c.recency = recency
	}

	return c, nil
}

// Resolve returns the asset for id, fetching it if needed.
// Concurrent calls for the same id share one fetch.
func (c *Cache) Resolve(ctx context.Context, id string) (Entry, error) {
	c.mu.Lock()
	if entry, ok := c.entries[id]; ok {
		c.touchLocked(id)
		c.mu.Unlock()
		return entry, nil
	}

	if inflight, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		zlog.Debug().Msgf("cache: waiting for in-flight fetch: id=%s", id)
		select {
		case <-inflight.done:
			return inflight.entry, inflight.err
		case <-ctx.Done():
			return Entry{}, ctx.Err()
		}
	}

	cl := &call{done: make(chan struct{})}
	c.inflight[id] = cl
	c.mu.Unlock()

	entry, err := c.load(ctx, id)

	c.mu.Lock()
	delete(c.inflight, id)
	if err == nil {
		c.entries[id] = entry
		if c.recency != nil {
			c.recency.Add(id, entry)
			c.trimLocked(id)
		}
	}
	c.mu.Unlock()

	cl.entry, cl.err = entry, err
	close(cl.done)

	return entry, err
}

// load finds the asset on disk or fetches it. Called by exactly one resolver per id.
func (c *Cache) load(ctx context.Context, id string) (Entry, error) {
	base := c.basePath(id)

	// Assets left by a previous run are reused without network activity.
	path := base + "." + c.config.Extension
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		if err := c.verify(id, path); err != nil {
			zlog.Warn().Msgf("cache: discarding unplayable asset on disk: id=%s error=%v", id, err)
		} else {
			zlog.Debug().Msgf("cache: found asset on disk: id=%s path=%s", id, path)
			return Entry{ID: id, Path: path, Title: c.config.PlaceholderTitle, Size: info.Size()}, nil
		}
	}

	zlog.Info().Msgf("cache: fetching asset: id=%s", id)
	fetched, title, err := c.fetcher.Fetch(ctx, id, base)
	if err != nil {
		zlog.Warn().Msgf("cache: fetch failed: id=%s error=%v", id, err)
		return Entry{}, errors.Mark(errors.Wrapf(err, "asset unavailable: %s", id), ErrAssetUnavailable)
	}

	info, err := os.Stat(fetched)
	if err != nil {
		return Entry{}, errors.Mark(errors.Wrapf(err, "asset missing after fetch: %s", id), ErrAssetUnavailable)
	}
	if info.Size() == 0 {
		_ = os.Remove(fetched)
		return Entry{}, errors.Mark(errors.Newf("asset is empty after fetch: %s", id), ErrAssetUnavailable)
	}
	if err := c.verify(id, fetched); err != nil {
		zlog.Warn().Msgf("cache: fetched asset is unplayable: id=%s error=%v", id, err)
		return Entry{}, err
	}

	if title == "" {
		title = c.config.PlaceholderTitle
	}

	zlog.Info().Msgf("cache: asset ready: id=%s title=%q size=%d", id, title, info.Size())
	return Entry{ID: id, Path: fetched, Title: title, Size: info.Size()}, nil
}

// verify runs the configured playability check. A failing asset is removed.
func (c *Cache) verify(id, path string) error {
	if c.config.Verify == nil {
		return nil
	}
	if err := c.config.Verify(path); err != nil {
		_ = os.Remove(path)
		return errors.Mark(errors.Wrapf(err, "asset is not playable: %s", id), ErrAssetUnavailable)
	}
	return nil
}

// Invalidate drops the entry for id and deletes its file, so the next
// Resolve fetches it again.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return
	}
	if c.recency != nil {
		c.recency.Remove(id)
	}
	c.removeLocked(id, entry)
	zlog.Info().Msgf("cache: invalidated asset: id=%s", id)
}

// SetPinned registers a predicate for ids that eviction must skip,
// typically queued and playing tracks.
func (c *Cache) SetPinned(pinned func(id string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned = pinned
}

// Lookup returns the cached entry for id without fetching.
func (c *Cache) Lookup(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if ok {
		c.touchLocked(id)
	}
	return entry, ok
}

// Pending reports whether id is cached or currently being fetched.
func (c *Cache) Pending(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return true
	}
	_, ok := c.inflight[id]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// basePath returns the asset path for id without extension.
func (c *Cache) basePath(id string) string {
	if simpleID.MatchString(id) {
		return filepath.Join(c.config.Dir, id)
	}
	hash := sha256.Sum256([]byte(id))
	return filepath.Join(c.config.Dir, hex.EncodeToString(hash[:]))
}

// touchLocked marks id as recently used. Must be called with c.mu held.
func (c *Cache) touchLocked(id string) {
	if c.recency != nil {
		c.recency.Get(id)
	}
}

// trimLocked evicts least recently used entries until MaxEntries holds.
// Pinned ids and keep are skipped, so the cache may stay over the limit
// while they are in use. Must be called with c.mu held.
func (c *Cache) trimLocked(keep string) {
	excess := c.recency.Len() - c.config.MaxEntries
	if excess <= 0 {
		return
	}
	for _, id := range c.recency.Keys() {
		if excess == 0 {
			return
		}
		if id == keep || (c.pinned != nil && c.pinned(id)) {
			continue
		}
		entry, _ := c.recency.Peek(id)
		c.recency.Remove(id)
		c.removeLocked(id, entry)
		zlog.Info().Msgf("cache: evicted asset: id=%s", id)
		excess--
	}
	if excess > 0 {
		zlog.Debug().Msgf("cache: over limit while assets are in use: entries=%d max=%d", len(c.entries), c.config.MaxEntries)
	}
}

// removeLocked drops an entry and its file. Must be called with c.mu held.
func (c *Cache) removeLocked(id string, entry Entry) {
	delete(c.entries, id)
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Msgf("cache: failed to remove asset: id=%s path=%s error=%v", id, entry.Path, err)
	}
}
