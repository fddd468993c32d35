// Package scheduler runs the background loops that drain the backlog
// into the playback engine and warm the cache ahead of it.
package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/domain/track"
)

// DefaultPollInterval is the wait between idle scheduler cycles.
const DefaultPollInterval = time.Second

// Backlog is the dequeue side of the queue store.
type Backlog interface {
	DequeueNext() (track.Track, bool)
}

// Player is the playback engine as seen by the scheduler.
type Player interface {
	IsIdle() bool
	Play(ctx context.Context, t track.Track) error
}

// Scheduler feeds the next backlog track to the player whenever it is idle.
// It is the only consumer of Backlog.DequeueNext.
type Scheduler struct {
	backlog  Backlog
	player   Player
	interval time.Duration
}

// New creates a scheduler.
func New(backlog Backlog, player Player, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		backlog:  backlog,
		player:   player,
		interval: interval,
	}
}

// Run loops until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	zlog.Info().Msgf("scheduler: started: poll_interval=%v", s.interval)
	defer zlog.Info().Msg("scheduler: stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if s.cycle(ctx) {
			// A track was handled; look for the next one right away.
			continue
		}

		if err := sleep(ctx, s.interval); err != nil {
			return err
		}
	}
}

// cycle plays at most one track. It returns true when a track was dequeued,
// whether or not it played successfully.
func (s *Scheduler) cycle(ctx context.Context) bool {
	if !s.player.IsIdle() {
		return false
	}

	next, ok := s.backlog.DequeueNext()
	if !ok {
		return false
	}

	zlog.Debug().Msgf("scheduler: dequeued: id=%s", next.ID)
	if err := s.player.Play(ctx, next); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		zlog.Warn().Msgf("scheduler: discarding track: id=%s error=%v", next.ID, err)
	}
	return true
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
