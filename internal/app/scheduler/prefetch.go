package scheduler

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/cache"
	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultPrefetchInterval is the wait between backlog scans.
const DefaultPrefetchInterval = 5 * time.Second

// DefaultPrefetchConcurrency caps background fetches.
const DefaultPrefetchConcurrency = 2

// Snapshotter is the read side of the queue store.
type Snapshotter interface {
	Snapshot() (normal, priority []track.Track)
}

// Warmer is the cache as seen by the prefetcher.
type Warmer interface {
	Pending(id string) bool
	Resolve(ctx context.Context, id string) (cache.Entry, error)
}

// Prefetcher resolves queued tracks in the background so the scheduler
// rarely waits on a fetch.
type Prefetcher struct {
	backlog  Snapshotter
	cache    Warmer
	interval time.Duration
	slots    chan struct{}
	wg       sync.WaitGroup
}

// NewPrefetcher creates a prefetcher.
func NewPrefetcher(backlog Snapshotter, warmer Warmer, interval time.Duration, concurrency int) *Prefetcher {
	if interval <= 0 {
		interval = DefaultPrefetchInterval
	}
	if concurrency <= 0 {
		concurrency = DefaultPrefetchConcurrency
	}
	return &Prefetcher{
		backlog:  backlog,
		cache:    warmer,
		interval: interval,
		slots:    make(chan struct{}, concurrency),
	}
}

// Run scans the backlog until ctx is cancelled, then waits for running fetches.
func (p *Prefetcher) Run(ctx context.Context) error {
	zlog.Info().Msgf("prefetch: started: interval=%v concurrency=%d", p.interval, cap(p.slots))
	defer func() {
		p.wg.Wait()
		zlog.Info().Msg("prefetch: stopped")
	}()

	for {
		p.scan(ctx)
		if err := sleep(ctx, p.interval); err != nil {
			return err
		}
	}
}

// scan starts a resolve for every queued track that is neither cached nor
// being fetched, priority queue first. Tracks that do not get a free slot
// are picked up by a later scan.
func (p *Prefetcher) scan(ctx context.Context) int {
	normal, priority := p.backlog.Snapshot()

	started := 0
	seen := make(map[string]bool)
	for _, t := range append(priority, normal...) {
		if seen[t.ID] || p.cache.Pending(t.ID) {
			continue
		}
		seen[t.ID] = true

		select {
		case p.slots <- struct{}{}:
		default:
			return started
		}

		started++
		p.wg.Add(1)
		go func(id string) {
			defer p.wg.Done()
			defer func() { <-p.slots }()

			if _, err := p.cache.Resolve(ctx, id); err != nil {
				zlog.Warn().Msgf("prefetch: resolve failed: id=%s error=%v", id, err)
				return
			}
			zlog.Debug().Msgf("prefetch: warmed: id=%s", id)
		}(t.ID)
	}
	return started
}
