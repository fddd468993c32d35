// Package jukebox is the control facade over the queue, the playback engine
// and the background loops.
package jukebox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tubebox/internal/app/notification"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/queue"
	"github.com/osa030/tubebox/internal/app/scheduler"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/domain/track"
)

// ErrInvalidRequest is returned for malformed control requests.
var ErrInvalidRequest = errors.New("invalid request")

// Command results
const (
	StatusAdded         = "added"
	StatusPaused        = "paused"
	StatusResumed       = "resumed"
	StatusSkipped       = "skipped"
	StatusNoSongPlaying = "no_song_playing"
)

// Engine is the playback engine as seen by the service.
type Engine interface {
	scheduler.Player
	Pause() error
	Resume() error
	Skip() error
	Status() playback.Status
	Events() <-chan playback.Event
	Close()
}

// Cache is the track cache as seen by the service.
type Cache interface {
	scheduler.Warmer
}

// Searcher finds tracks and expands catalog links.
type Searcher interface {
	Search(ctx context.Context, query string) []search.Result
	Expand(ctx context.Context, input string) (track.Track, bool, error)
}

// Config holds service configuration.
type Config struct {
	PollInterval        time.Duration
	PrefetchInterval    time.Duration
	PrefetchConcurrency int
	PrefetchDisabled    bool
}

// Queues is a snapshot of both backlog queues.
type Queues struct {
	Queue    []track.Track
	Priority []track.Track
}

// Service implements the control operations.
type Service struct {
	store    *queue.Store
	engine   Engine
	cache    Cache
	searcher Searcher
	notifier *notification.Manager
	config   Config

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	pump    sync.WaitGroup
}

// New creates a jukebox service. searcher may be nil.
func New(config Config, store *queue.Store, engine Engine, cache Cache, searcher Searcher, notifier *notification.Manager) *Service {
	if notifier == nil {
		notifier = notification.NewManager()
	}
	return &Service{
		store:    store,
		engine:   engine,
		cache:    cache,
		searcher: searcher,
		notifier: notifier,
		config:   config,
	}
}

// Start runs the scheduler, the prefetcher and the event pump until Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("jukebox already started")
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pump.Add(1)
	go func() {
		defer s.pump.Done()
		s.pumpEvents()
	}()

	sched := scheduler.New(s.store, s.engine, s.config.PollInterval)
	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		_ = sched.Run(ctx)
	}()

	if s.config.PrefetchDisabled {
		zlog.Info().Msg("jukebox: prefetch disabled")
	} else {
		prefetcher := scheduler.NewPrefetcher(s.store, s.cache, s.config.PrefetchInterval, s.config.PrefetchConcurrency)
		s.loops.Add(1)
		go func() {
			defer s.loops.Done()
			_ = prefetcher.Run(ctx)
		}()
	}

	zlog.Info().Msg("jukebox: started")
	return nil
}

// Stop cancels the loops, waits for the current session to end and closes
// the engine.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.loops.Wait()
	s.engine.Close()
	s.pump.Wait()
	s.notifier.Close()
	zlog.Info().Msg("jukebox: stopped")
}

// AddTrack appends a track to the normal queue and returns the new queue.
func (s *Service) AddTrack(ctx context.Context, id, title string) ([]track.Track, error) {
	t, err := s.prepare(ctx, id, title)
	if err != nil {
		return nil, err
	}
	snapshot := s.store.EnqueueNormal(t)
	zlog.Info().Msgf("jukebox: queued: id=%s title=%q position=%d", t.ID, t.Title, len(snapshot))
	s.broadcastQueues()
	return snapshot, nil
}

// AddPriorityTrack appends a track to the priority queue and returns the new
// priority queue.
func (s *Service) AddPriorityTrack(ctx context.Context, id, title string) ([]track.Track, error) {
	t, err := s.prepare(ctx, id, title)
	if err != nil {
		return nil, err
	}
	snapshot := s.store.EnqueuePriority(t)
	zlog.Info().Msgf("jukebox: queued priority: id=%s title=%q position=%d", t.ID, t.Title, len(snapshot))
	s.broadcastQueues()
	return snapshot, nil
}

// prepare validates the payload and normalizes links into playable ids.
func (s *Service) prepare(ctx context.Context, id, title string) (track.Track, error) {
	input := strings.TrimSpace(id)
	if input == "" {
		return track.Track{}, errors.Mark(errors.Wrap(track.ErrInvalidTrack, "track id is required"), ErrInvalidRequest)
	}

	if s.searcher != nil {
		expanded, ok, err := s.searcher.Expand(ctx, input)
		if err != nil {
			return track.Track{}, errors.Mark(errors.Wrapf(err, "cannot resolve link %s", input), ErrInvalidRequest)
		}
		if ok {
			if strings.TrimSpace(title) != "" {
				expanded = expanded.WithTitle(title)
			}
			return expanded, nil
		}
	}

	t, err := track.New(track.ParseID(input), title)
	if err != nil {
		return track.Track{}, errors.Mark(err, ErrInvalidRequest)
	}
	return t, nil
}

// ListQueues returns a snapshot of both queues.
func (s *Service) ListQueues() Queues {
	normal, priority := s.store.Snapshot()
	return Queues{Queue: normal, Priority: priority}
}

// Status returns the playback state.
func (s *Service) Status() playback.Status {
	return s.engine.Status()
}

// Pause pauses playback.
func (s *Service) Pause() (string, error) {
	return transport(s.engine.Pause, StatusPaused)
}

// Resume resumes playback.
func (s *Service) Resume() (string, error) {
	return transport(s.engine.Resume, StatusResumed)
}

// Skip ends the current track.
func (s *Service) Skip() (string, error) {
	return transport(s.engine.Skip, StatusSkipped)
}

// transport maps an engine command to a status value. Idle is a status, not
// an error.
func transport(cmd func() error, ok string) (string, error) {
	err := cmd()
	switch {
	case err == nil:
		return ok, nil
	case errors.Is(err, playback.ErrNoActiveTrack):
		return StatusNoSongPlaying, nil
	default:
		return "", err
	}
}

// Search delegates to the search chain. Without one, results are empty.
func (s *Service) Search(ctx context.Context, query string) []search.Result {
	if s.searcher == nil || strings.TrimSpace(query) == "" {
		return []search.Result{}
	}
	return s.searcher.Search(ctx, query)
}

// Watch streams notifications until ctx is done or the service stops,
// starting with the current state.
func (s *Service) Watch(ctx context.Context, stream notification.Stream) error {
	id, err := s.notifier.SubscribeWith(stream, func() *notification.Notification {
		return s.snapshot(notification.TypeInitialState)
	})
	if err != nil {
		return errors.Wrap(err, "failed to send initial state")
	}
	defer s.notifier.Unsubscribe(id)

	select {
	case <-ctx.Done():
	case <-s.notifier.Done():
	}
	return nil
}

// Notifier returns the notification manager.
func (s *Service) Notifier() *notification.Manager {
	return s.notifier
}

// pumpEvents turns engine events into notifications until the engine closes.
func (s *Service) pumpEvents() {
	for ev := range s.engine.Events() {
		var n *notification.Notification
		switch ev.Type {
		case playback.EventTrackStarted:
			n = s.snapshot(notification.TypeNowPlaying)
		case playback.EventTrackEnded, playback.EventTrackSkipped, playback.EventTrackStopped, playback.EventStateChanged:
			n = s.snapshot(notification.TypeStateChanged)
		case playback.EventProgress:
			n = &notification.Notification{Type: notification.TypeProgress}
		case playback.EventTrackFailed:
			n = s.snapshot(notification.TypeTrackFailed)
			if ev.Err != nil {
				n.Error = ev.Err.Error()
			}
		default:
			continue
		}
		n.Track = ev.Track
		n.Status = ev.Status
		s.notifier.Broadcast(n)
	}
}

func (s *Service) broadcastQueues() {
	s.notifier.BroadcastWith(func() *notification.Notification {
		return s.snapshot(notification.TypeQueueUpdated)
	})
}

func (s *Service) snapshot(typ notification.Type) *notification.Notification {
	normal, priority := s.store.Snapshot()
	return &notification.Notification{
		Type:     typ,
		Status:   s.engine.Status(),
		Queue:    normal,
		Priority: priority,
	}
}
