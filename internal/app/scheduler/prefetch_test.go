package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tubebox/internal/app/cache"
	"github.com/osa030/tubebox/internal/app/queue"
	"github.com/osa030/tubebox/internal/domain/track"
)

// fakeWarmer records resolves and can hold them until released.
type fakeWarmer struct {
	mu       sync.Mutex
	pending  map[string]bool
	resolved []string
	gate     chan struct{}
	failFor  map[string]bool
}

func newFakeWarmer() *fakeWarmer {
	return &fakeWarmer{pending: map[string]bool{}, failFor: map[string]bool{}}
}

func (w *fakeWarmer) Pending(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending[id]
}

func (w *fakeWarmer) Resolve(ctx context.Context, id string) (cache.Entry, error) {
	w.mu.Lock()
	w.pending[id] = true
	w.resolved = append(w.resolved, id)
	gate := w.gate
	fail := w.failFor[id]
	w.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return cache.Entry{}, ctx.Err()
		}
	}
	if fail {
		return cache.Entry{}, errors.Mark(errors.Newf("asset unavailable: %s", id), cache.ErrAssetUnavailable)
	}
	return cache.Entry{ID: id}, nil
}

func (w *fakeWarmer) calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.resolved...)
}

func TestPrefetcher_Scan(t *testing.T) {
	tests := []struct {
		name     string
		normal   []string
		priority []string
		pending  []string
		want     []string
	}{
		{
			name: "empty backlog",
			want: nil,
		},
		{
			name:     "priority first",
			normal:   []string{"n1"},
			priority: []string{"p1"},
			want:     []string{"p1", "n1"},
		},
		{
			name:    "skips cached and in-flight ids",
			normal:  []string{"a", "b"},
			pending: []string{"a"},
			want:    []string{"b"},
		},
		{
			name:     "dedupes ids queued twice",
			normal:   []string{"x", "x"},
			priority: []string{"x"},
			want:     []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := queue.NewStore()
			for _, id := range tt.normal {
				store.EnqueueNormal(track.Track{ID: id})
			}
			for _, id := range tt.priority {
				store.EnqueuePriority(track.Track{ID: id})
			}
			warmer := newFakeWarmer()
			for _, id := range tt.pending {
				warmer.pending[id] = true
			}

			p := NewPrefetcher(store, warmer, time.Hour, 8)
			started := p.scan(context.Background())
			p.wg.Wait()

			assert.Equal(t, len(tt.want), started)
			assert.ElementsMatch(t, tt.want, warmer.calls())
		})
	}
}

func TestPrefetcher_RespectsConcurrency(t *testing.T) {
	store := queue.NewStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		store.EnqueueNormal(track.Track{ID: id})
	}
	warmer := newFakeWarmer()
	warmer.gate = make(chan struct{})

	p := NewPrefetcher(store, warmer, time.Hour, 2)
	assert.Equal(t, 2, p.scan(context.Background()))

	// Slots are full and the started ids are pending.
	assert.Equal(t, 0, p.scan(context.Background()))

	close(warmer.gate)
	p.wg.Wait()

	assert.Equal(t, 2, p.scan(context.Background()))
	p.wg.Wait()
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, warmer.calls())
}

func TestPrefetcher_FailureDoesNotTouchBacklog(t *testing.T) {
	store := queue.NewStore()
	store.EnqueueNormal(track.Track{ID: "bad"})
	warmer := newFakeWarmer()
	warmer.failFor["bad"] = true

	p := NewPrefetcher(store, warmer, time.Hour, 1)
	p.scan(context.Background())
	p.wg.Wait()

	normal, _ := store.Snapshot()
	require.Len(t, normal, 1)
	assert.Equal(t, "bad", normal[0].ID)
}

func TestPrefetcher_WarmsRealCache(t *testing.T) {
	fetcher := newScriptedFetcher()
	c, err := cache.New(cache.Config{Dir: t.TempDir()}, fetcher)
	require.NoError(t, err)

	store := queue.NewStore()
	store.EnqueueNormal(track.Track{ID: "warm"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p := NewPrefetcher(store, c, testInterval, 2)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := c.Lookup("warm")
		return ok
	}, 2*time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	// Cached ids are not fetched again on later scans.
	assert.Equal(t, 1, fetcher.callsFor("warm"))
}

func TestPrefetcher_BoundedCacheKeepsQueuedAssets(t *testing.T) {
	fetcher := newScriptedFetcher()
	c, err := cache.New(cache.Config{Dir: t.TempDir(), MaxEntries: 1}, fetcher)
	require.NoError(t, err)

	store := queue.NewStore()
	store.EnqueueNormal(track.Track{ID: "a"})
	store.EnqueueNormal(track.Track{ID: "b"})
	c.SetPinned(store.Contains)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	p := NewPrefetcher(store, c, testInterval, 2)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return c.Len() == 2
	}, 2*time.Second, time.Millisecond)
	// Many more scans than tracks.
	time.Sleep(20 * testInterval)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, fetcher.callsFor("a"))
	assert.Equal(t, 1, fetcher.callsFor("b"))
	_, ok := c.Lookup("a")
	assert.True(t, ok)
}
